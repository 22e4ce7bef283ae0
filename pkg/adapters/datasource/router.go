package datasource

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/chatq-inc/chatq-engine/pkg/apperrors"
	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/logging"
	"github.com/chatq-inc/chatq-engine/pkg/metrics"
	"github.com/chatq-inc/chatq-engine/pkg/repositories"
)

// buildTimeout bounds a tenant connection build. Builds are detached from the
// triggering request so that one cancelled caller cannot poison the cache
// for the callers waiting on the same build.
const buildTimeout = 30 * time.Second

// Router resolves tenant ids to live connections. Connections are built on
// first use, at most once per tenant, and kept for the process lifetime.
// Any tenant that cannot be built is served by the default connection.
type Router struct {
	repo        repositories.TenantDataSourceRepository
	open        Opener
	defaultConn *TenantConnection

	mu    sync.RWMutex
	conns map[string]*TenantConnection
	group singleflight.Group

	logger *zap.Logger
}

// NewRouter creates a Router that falls back to defaultConn.
func NewRouter(repo repositories.TenantDataSourceRepository, defaultConn *TenantConnection, open Opener, logger *zap.Logger) *Router {
	return &Router{
		repo:        repo,
		open:        open,
		defaultConn: defaultConn,
		conns:       make(map[string]*TenantConnection),
		logger:      logger.Named("tenant-router"),
	}
}

// Default returns the default connection.
func (r *Router) Default() *TenantConnection {
	return r.defaultConn
}

// ConnectionFor returns the connection for tenantID. It never fails.
func (r *Router) ConnectionFor(ctx context.Context, tenantID string) *TenantConnection {
	if database.IsDefaultTenant(tenantID) {
		metrics.ObserveTenantConnection(metrics.ConnectionDefault)
		return r.defaultConn
	}

	if conn, ok := r.cached(tenantID); ok {
		return conn
	}

	v, _, _ := r.group.Do(tenantID, func() (any, error) {
		// A build for this tenant may have finished between the cache miss
		// and acquiring the flight.
		if conn, ok := r.cached(tenantID); ok {
			return conn, nil
		}

		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), buildTimeout)
		defer cancel()

		conn := r.build(buildCtx, tenantID)

		r.mu.Lock()
		r.conns[tenantID] = conn
		r.mu.Unlock()

		return conn, nil
	})

	return v.(*TenantConnection)
}

func (r *Router) cached(tenantID string) (*TenantConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[tenantID]
	return conn, ok
}

func (r *Router) build(ctx context.Context, tenantID string) *TenantConnection {
	ds, err := r.repo.GetByCompany(ctx, tenantID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			r.logger.Info("No datasource registered for tenant, using default",
				zap.String("tenant", tenantID))
		} else {
			r.logger.Warn("Datasource lookup failed, using default",
				zap.String("tenant", tenantID),
				zap.String("error", logging.SanitizeError(err)))
		}
		return r.fallback()
	}

	conn, err := r.open(ctx, ds)
	if err != nil {
		r.logger.Warn("Failed to open tenant datasource, using default",
			zap.String("tenant", tenantID),
			zap.String("driver", ds.DriverClass),
			zap.String("url", logging.SanitizeConnectionString(ds.URL)),
			zap.String("error", logging.SanitizeError(err)))
		return r.fallback()
	}

	metrics.ObserveTenantConnection(metrics.ConnectionBuilt)
	r.logger.Info("Opened tenant datasource",
		zap.String("tenant", tenantID),
		zap.String("driver", conn.Driver().Type))
	return conn
}

func (r *Router) fallback() *TenantConnection {
	metrics.ObserveTenantConnection(metrics.ConnectionFallback)
	return r.defaultConn
}

// Tenants returns the ids with a cached connection, including fallbacks.
func (r *Router) Tenants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	return ids
}

// Close closes every tenant connection built by the router. The default
// connection belongs to the caller and is left open.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for id, conn := range r.conns {
		if conn != r.defaultConn {
			if err := conn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		delete(r.conns, id)
	}
	return errors.Join(errs...)
}
