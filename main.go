package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/adapters/datasource"
	_ "github.com/chatq-inc/chatq-engine/pkg/adapters/datasource/mssql"
	_ "github.com/chatq-inc/chatq-engine/pkg/adapters/datasource/postgres"
	"github.com/chatq-inc/chatq-engine/pkg/audit"
	"github.com/chatq-inc/chatq-engine/pkg/auth"
	"github.com/chatq-inc/chatq-engine/pkg/config"
	"github.com/chatq-inc/chatq-engine/pkg/crypto"
	"github.com/chatq-inc/chatq-engine/pkg/database"
	"github.com/chatq-inc/chatq-engine/pkg/handlers"
	"github.com/chatq-inc/chatq-engine/pkg/llm"
	"github.com/chatq-inc/chatq-engine/pkg/logging"
	"github.com/chatq-inc/chatq-engine/pkg/mcp"
	"github.com/chatq-inc/chatq-engine/pkg/metrics"
	"github.com/chatq-inc/chatq-engine/pkg/middleware"
	"github.com/chatq-inc/chatq-engine/pkg/repositories"
	"github.com/chatq-inc/chatq-engine/pkg/retry"
	"github.com/chatq-inc/chatq-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("base_url", cfg.BaseURL),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("memory_backend", cfg.Memory.Backend),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("database", cfg.Database.User+"@"+cfg.Database.Host+"/"+cfg.Database.Database),
	)

	cfg.Database.Host = config.ResolveHostForDocker(cfg.Database.Host)
	cfg.LLM.Ollama.BaseURL = config.ResolveURLForDocker(cfg.LLM.Ollama.BaseURL)

	bootRetry := retry.DefaultConfig()
	bootRetry.OnRetry = func(attempt int, err error, wait time.Duration) {
		logger.Warn("Backing store not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.String("error", logging.SanitizeError(err)))
	}

	// Control plane: tenant registry and schema catalog.
	db, err := retry.DoWithResult(ctx, bootRetry, func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
		})
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(db.SQL(), cfg.Database.MigrationsPath, logger); err != nil {
		return err
	}

	sqlDB := db.SQL()
	defer func() { _ = sqlDB.Close() }()

	catalogRepo := repositories.NewCatalogRepository(sqlDB)
	tenantRepo := repositories.NewTenantDataSourceRepository(sqlDB)

	// Tenant databases.
	defaultConn, err := retry.DoWithResult(ctx, bootRetry, func() (*datasource.TenantConnection, error) {
		return datasource.OpenDefault(ctx, database.DefaultTenant, &cfg.DefaultTenant)
	})
	if err != nil {
		return err
	}
	defer func() { _ = defaultConn.Close() }()

	router := datasource.NewRouter(tenantRepo, defaultConn, datasource.NewOpener(datasource.PoolOptions{
		MaxOpenConns: cfg.DefaultTenant.MaxOpenConns,
		MaxIdleConns: cfg.DefaultTenant.MaxIdleConns,
	}), logger)
	defer func() {
		if err := router.Close(); err != nil {
			logger.Warn("Failed to close tenant connections", zap.Error(err))
		}
	}()

	gateway, err := llm.NewGateway(&cfg.LLM, logger)
	if err != nil {
		return err
	}

	memory, closeMemory, err := newConversationMemory(ctx, cfg, bootRetry, logger)
	if err != nil {
		return err
	}
	defer closeMemory()

	if cfg.Continuation.Secret == config.DefaultContinuationSecret {
		logger.Warn("CHATQ_ENCRYPT_SECRET is not set; continuation tokens use the development key")
	}
	codec, err := crypto.NewContinuationCodec(cfg.Continuation.Secret, logger)
	if err != nil {
		return err
	}

	promptService := services.NewPromptService(catalogRepo, &cfg.Query, logger)
	auditor := audit.NewSecurityAuditor(logger)
	queryService := services.NewQueryService(router, promptService, gateway, memory, codec, auditor, &cfg.Query, logger)

	// Access profile resolution.
	validator, err := auth.NewJWTValidator(&cfg.Auth)
	if err != nil {
		return err
	}
	defer validator.Close()

	if cfg.Auth.SessionSecret == "" {
		logger.Warn("AUTH_SESSION_SECRET is not set; session cookies will not validate against the login service")
	}
	sessionStore := auth.NewSessionStore(cfg.Auth.SessionSecret, auth.DeriveCookieSettings(cfg.BaseURL))
	profileResolver := auth.NewProfileResolver(validator, sessionStore, &cfg.Auth, logger)
	authMiddleware := auth.NewMiddleware(profileResolver, logger)

	// Routes.
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, db, router, logger).RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	api := http.NewServeMux()
	handlers.NewChatQHandler(queryService, logger).RegisterRoutes(api)
	if cfg.MCP.Enabled {
		mcpServer := mcp.NewQueryServer(cfg.Version, queryService, router, logger)
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(api)
	}

	// RequestLogger -> WithTenantContext -> ResolveProfile -> handler
	var apiHandler http.Handler = authMiddleware.ResolveProfile(api)
	apiHandler = database.WithTenantContext(logger)(apiHandler)
	mux.Handle("/api/", apiHandler)
	if cfg.MCP.Enabled {
		mux.Handle("/mcp", apiHandler)
	}

	handler := middleware.RequestLogger(logger)(metrics.Middleware(mux))

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Gateway calls can take minutes; leave room for two per turn.
		WriteTimeout: 2*cfg.LLM.Timeout() + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting chatq-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	return nil
}

// newConversationMemory builds the configured memory backend. The returned
// close func is never nil.
func newConversationMemory(ctx context.Context, cfg *config.Config, bootRetry *retry.Config, logger *zap.Logger) (llm.ConversationMemory, func(), error) {
	if cfg.Memory.Backend != "redis" {
		return llm.NewLRUMemory(cfg.Memory.Capacity, cfg.Memory.TTL()), func() {}, nil
	}

	client, err := retry.DoWithResult(ctx, bootRetry, func() (*redis.Client, error) {
		return database.NewRedisClient(ctx, &cfg.Redis)
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Conversation memory backed by Redis", zap.String("host", cfg.Redis.Host))
	return llm.NewRedisMemory(client, cfg.Memory.TTL(), logger), func() { _ = client.Close() }, nil
}
