package datasource

import (
	"sort"
	"strings"
	"sync"

	"github.com/chatq-inc/chatq-engine/pkg/models"
)

// DriverInfo describes a registered tenant database driver.
type DriverInfo struct {
	Type        string   // "postgres", "sqlserver"
	DisplayName string   // product name, also the default prompt dialect
	DriverName  string   // database/sql driver name passed to sql.Open
	Aliases     []string // other accepted driver_class_name values, including JDBC class names
}

// DriverRegistration contains info plus the DSN builder for one driver.
type DriverRegistration struct {
	Info DriverInfo

	// BuildDSN turns a chatqcomp row into a DSN for Info.DriverName.
	BuildDSN func(ds *models.TenantDataSource) (string, error)

	// VersionQuery, when set, is run once per connection; the first word of
	// its result replaces DisplayName as the dialect. Servers speaking the
	// PostgreSQL protocol report their real product this way.
	VersionQuery string

	// QuoteIdentifier renders a column alias or table name in the driver's
	// identifier quoting. Nil means SQL-standard double quotes.
	QuoteIdentifier func(name string) string

	// ReadOnlyTx reports whether the driver accepts sql.TxOptions{ReadOnly: true}.
	// Statements always run in a transaction that is rolled back; read-only
	// drivers additionally refuse writes at the server.
	ReadOnlyTx bool
}

// QuoteANSI quotes name with SQL-standard double quotes, doubling any
// embedded quote.
func QuoteANSI(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]*DriverRegistration)
)

// Register is called by each driver package's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg DriverRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()

	r := reg
	registry[strings.ToLower(reg.Info.Type)] = &r
	for _, alias := range reg.Info.Aliases {
		registry[strings.ToLower(alias)] = &r
	}
}

// LookupDriver resolves a driver_class_name to its registration.
// Matching is case-insensitive on the type and every alias.
func LookupDriver(name string) (*DriverRegistration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	reg, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return reg, ok
}

// RegisteredDrivers returns info for every registered driver, sorted by type.
func RegisteredDrivers() []DriverInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	result := make([]DriverInfo, 0, len(registry))
	for _, reg := range registry {
		if seen[reg.Info.Type] {
			continue
		}
		seen[reg.Info.Type] = true
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}
