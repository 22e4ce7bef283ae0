package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
)

// TenantConnection owns the database pool of one tenant. It lives for the
// rest of the process once built.
type TenantConnection struct {
	Tenant string
	DB     *sql.DB

	driver      *DriverRegistration
	dialectOnce sync.Once
	dialect     string
}

// NewTenantConnection wraps db, opened with driver, for tenant.
func NewTenantConnection(tenant string, db *sql.DB, driver *DriverRegistration) *TenantConnection {
	return &TenantConnection{
		Tenant: tenant,
		DB:     db,
		driver: driver,
	}
}

// Driver returns the registration the connection was opened with.
func (c *TenantConnection) Driver() DriverInfo {
	return c.driver.Info
}

// Dialect returns the database product name used to target synthesized SQL.
// It is computed on first use and memoized.
func (c *TenantConnection) Dialect(ctx context.Context) string {
	c.dialectOnce.Do(func() {
		c.dialect = c.driver.Info.DisplayName
		if c.driver.VersionQuery == "" {
			return
		}

		var banner string
		if err := c.DB.QueryRowContext(ctx, c.driver.VersionQuery).Scan(&banner); err != nil {
			return
		}
		if fields := strings.Fields(banner); len(fields) > 0 {
			c.dialect = fields[0]
		}
	})
	return c.dialect
}

// QuoteIdentifier quotes name for this connection's driver.
func (c *TenantConnection) QuoteIdentifier(name string) string {
	if c.driver.QuoteIdentifier == nil {
		return QuoteANSI(name)
	}
	return c.driver.QuoteIdentifier(name)
}

// Query runs one statement inside a transaction that is always rolled back,
// read-only where the driver supports it. Generated SQL never commits.
func (c *TenantConnection) Query(ctx context.Context, sqlText string) (*QueryExecutionResult, error) {
	tx, err := c.DB.BeginTx(ctx, &sql.TxOptions{ReadOnly: c.driver.ReadOnlyTx})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return Execute(ctx, tx, sqlText)
}

// Close closes the underlying pool.
func (c *TenantConnection) Close() error {
	return c.DB.Close()
}
