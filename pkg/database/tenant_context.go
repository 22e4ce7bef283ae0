package database

import (
	"context"
	"strings"
)

// DefaultTenant is the reserved tenant id served by the statically
// configured connection.
const DefaultTenant = "chatq"

type contextKey string

const tenantKey contextKey = "tenant"

// WithTenant returns a context carrying the tenant id for the current request.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey, tenant)
}

// TenantFromContext returns the tenant id stored in ctx, or DefaultTenant
// when none is set.
func TenantFromContext(ctx context.Context) string {
	if tenant, ok := ctx.Value(tenantKey).(string); ok && tenant != "" {
		return tenant
	}
	return DefaultTenant
}

// IsDefaultTenant reports whether tenant refers to the default connection.
func IsDefaultTenant(tenant string) bool {
	return tenant == "" || strings.EqualFold(tenant, DefaultTenant)
}
