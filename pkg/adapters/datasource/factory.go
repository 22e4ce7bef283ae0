package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chatq-inc/chatq-engine/pkg/apperrors"
	"github.com/chatq-inc/chatq-engine/pkg/config"
	"github.com/chatq-inc/chatq-engine/pkg/models"
)

const (
	DefaultMaxOpenConns = 10
	DefaultMaxIdleConns = 2
	pingTimeout         = 10 * time.Second
)

// PoolOptions bounds the database/sql pool of a tenant connection.
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
}

// Opener builds a live connection for a tenant. Open is the production
// implementation; tests substitute their own.
type Opener func(ctx context.Context, ds *models.TenantDataSource) (*TenantConnection, error)

// NewOpener returns an Opener that applies opts to every pool it creates.
func NewOpener(opts PoolOptions) Opener {
	return func(ctx context.Context, ds *models.TenantDataSource) (*TenantConnection, error) {
		return Open(ctx, ds, opts)
	}
}

// Open resolves the driver for ds, opens a pool and pings it. The pool is
// closed again if the ping fails.
func Open(ctx context.Context, ds *models.TenantDataSource, opts PoolOptions) (*TenantConnection, error) {
	reg, ok := LookupDriver(ds.DriverClass)
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedDriver, ds.DriverClass)
	}

	dsn, err := reg.BuildDSN(ds)
	if err != nil {
		return nil, fmt.Errorf("invalid datasource url for %s: %w", ds.Company, err)
	}

	db, err := sql.Open(reg.Info.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", reg.Info.Type, err)
	}

	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = DefaultMaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = DefaultMaxIdleConns
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", reg.Info.Type, err)
	}

	return NewTenantConnection(ds.Company, db, reg), nil
}

// OpenDefault opens the statically configured default tenant connection.
func OpenDefault(ctx context.Context, tenant string, cfg *config.TenantDBConfig) (*TenantConnection, error) {
	return Open(ctx, &models.TenantDataSource{
		Company:     tenant,
		URL:         cfg.URL,
		User:        cfg.User,
		Password:    cfg.Password,
		DriverClass: cfg.Driver,
	}, PoolOptions{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
}

// StripJDBCPrefix removes a leading "jdbc:" so JDBC-style URLs stored in the
// control plane parse as ordinary URLs.
func StripJDBCPrefix(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 5 && strings.EqualFold(raw[:5], "jdbc:") {
		return raw[5:]
	}
	return raw
}

// ParseURL strips any JDBC prefix, checks the scheme against allowed, sets
// user and password as userinfo when given, and rewrites loopback hosts when
// running in Docker.
func ParseURL(raw, user, password string, allowed ...string) (*url.URL, error) {
	u, err := url.Parse(config.ResolveURLForDocker(StripJDBCPrefix(raw)))
	if err != nil {
		return nil, err
	}

	schemeOK := false
	for _, s := range allowed {
		if strings.EqualFold(u.Scheme, s) {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("url has no host")
	}

	if user != "" {
		if password != "" {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}
	return u, nil
}
