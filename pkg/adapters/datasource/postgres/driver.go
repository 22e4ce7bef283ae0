// Package postgres registers the PostgreSQL tenant driver (pgx stdlib).
// Import it for side effects.
package postgres

import (
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" with database/sql

	"github.com/chatq-inc/chatq-engine/pkg/adapters/datasource"
	"github.com/chatq-inc/chatq-engine/pkg/models"
)

const (
	Type        = "postgres"
	DisplayName = "PostgreSQL"
)

func init() {
	datasource.Register(datasource.DriverRegistration{
		Info: datasource.DriverInfo{
			Type:        Type,
			DisplayName: DisplayName,
			DriverName:  "pgx",
			Aliases:     []string{"pgx", "postgresql", "org.postgresql.Driver"},
		},
		BuildDSN:        BuildDSN,
		VersionQuery:    "SELECT version()",
		QuoteIdentifier: QuoteIdentifier,
		ReadOnlyTx:      true,
	})
}

// QuoteIdentifier uses PostgreSQL's double-quote quoting.
func QuoteIdentifier(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// BuildDSN converts a chatqcomp row into a pgx URL DSN, e.g.
// jdbc:postgresql://db:5432/sales?sslmode=disable.
func BuildDSN(ds *models.TenantDataSource) (string, error) {
	u, err := datasource.ParseURL(ds.URL, ds.User, ds.Password, "postgres", "postgresql")
	if err != nil {
		return "", err
	}
	u.Scheme = "postgres"
	return u.String(), nil
}
