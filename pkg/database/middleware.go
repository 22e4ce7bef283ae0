package database

import (
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/sql"
)

// TenantHeader lets callers select a tenant explicitly, overriding the subdomain.
const TenantHeader = "X-Target-Company"

// WithTenantContext creates middleware that resolves the tenant for each
// request and stores it in the request context. Resolution never fails:
// anything unusable resolves to DefaultTenant.
func WithTenantContext(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("tenant")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := ResolveTenant(r)

			if result := sql.CheckValueForInjection("company", tenant); result != nil {
				logger.Warn("Rejected suspicious tenant id, using default",
					zap.String("fingerprint", result.Fingerprint),
					zap.String("host", r.Host))
				tenant = DefaultTenant
			}

			logger.Debug("Resolved tenant", zap.String("tenant", tenant))
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenant)))
		})
	}
}

// ResolveTenant derives the tenant id from the request: the X-Target-Company
// header wins, then the first label of a host with more than two labels.
// "www" maps to DefaultTenant. Tenant ids are lower-cased here so pools,
// catalog rows and conversation keys all see one spelling.
func ResolveTenant(r *http.Request) string {
	tenant := DefaultTenant

	if header := strings.TrimSpace(r.Header.Get(TenantHeader)); header != "" {
		tenant = header
	} else if sub := subdomain(r.Host); sub != "" {
		tenant = sub
	}

	tenant = strings.ToLower(tenant)
	if tenant == "www" {
		return DefaultTenant
	}
	return tenant
}

func subdomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if net.ParseIP(host) != nil {
		return ""
	}
	parts := strings.Split(host, ".")
	if len(parts) > 2 {
		return parts[0]
	}
	return ""
}
