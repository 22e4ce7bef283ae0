package database

import (
	"context"
	"database/sql"
	"fmt"
)

// TenantScope wraps a control-plane connection with tenant context and
// ensures cleanup. The connection has app.current_company set for RLS policy
// evaluation.
type TenantScope struct {
	Conn *sql.Conn
}

// Close resets tenant context and returns the connection to the pool.
// This MUST be called to prevent tenant context from leaking to the next request.
func (s *TenantScope) Close() {
	if s == nil || s.Conn == nil {
		return
	}
	_, _ = s.Conn.ExecContext(context.Background(), "RESET app.current_company")
	_ = s.Conn.Close()
}

// OpenTenantScope takes a connection from db and sets the tenant context for RLS.
// The returned TenantScope MUST be closed with defer scope.Close().
func OpenTenantScope(ctx context.Context, db *sql.DB, company string) (*TenantScope, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "SELECT set_config('app.current_company', $1, false)", company); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set tenant context: %w", err)
	}

	return &TenantScope{Conn: conn}, nil
}
