package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for chatq-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Control-plane database (tenant registry and schema catalog)
	Database DatabaseConfig `yaml:"database"`

	// Connection used for the default tenant and as fallback for tenants
	// without a usable chatqcomp row.
	DefaultTenant TenantDBConfig `yaml:"default_tenant"`

	LLM          LLMConfig          `yaml:"llm"`
	Query        QueryConfig        `yaml:"query"`
	Continuation ContinuationConfig `yaml:"continuation"`
	Memory       MemoryConfig       `yaml:"memory"`
	Redis        RedisConfig        `yaml:"redis"`
	Auth         AuthConfig         `yaml:"auth"`
	MCP          MCPConfig          `yaml:"mcp"`
}

// DatabaseConfig holds PostgreSQL control-plane configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"chatq"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"chatq"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// TenantDBConfig describes the statically configured default tenant database.
// Driver accepts the same names as chatqcomp.driver_class_name.
type TenantDBConfig struct {
	Driver       string `yaml:"driver" env:"DEFAULT_TENANT_DRIVER" env-default:"pgx"`
	URL          string `yaml:"url" env:"DEFAULT_TENANT_URL" env-default:"postgresql://localhost:5432/chatq?sslmode=disable"`
	User         string `yaml:"user" env:"DEFAULT_TENANT_USER" env-default:"chatq"`
	Password     string `yaml:"-" env:"DEFAULT_TENANT_PASSWORD"` // Secret - not in YAML
	MaxOpenConns int    `yaml:"max_open_conns" env:"DEFAULT_TENANT_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns int    `yaml:"max_idle_conns" env:"DEFAULT_TENANT_MAX_IDLE_CONNS" env-default:"2"`
}

// LLMConfig selects and configures the chat gateway.
type LLMConfig struct {
	// Provider is one of "openai", "anthropic", "ollama".
	Provider       string          `yaml:"provider" env:"LLM_PROVIDER" env-default:"ollama"`
	TimeoutSeconds int             `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"120"`
	OpenAI         OpenAIConfig    `yaml:"openai"`
	Anthropic      AnthropicConfig `yaml:"anthropic"`
	Ollama         OllamaConfig    `yaml:"ollama"`
}

// Timeout returns the per-call gateway timeout.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type OpenAIConfig struct {
	BaseURL     string  `yaml:"base_url" env:"OPENAI_BASE_URL" env-default:""`
	Model       string  `yaml:"model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	APIKey      string  `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	Temperature float32 `yaml:"temperature" env:"OPENAI_TEMPERATURE" env-default:"1.0"`
	MaxTokens   int     `yaml:"max_tokens" env:"OPENAI_MAX_TOKENS" env-default:"1024"`
}

type AnthropicConfig struct {
	Model     string `yaml:"model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-haiku-latest"`
	APIKey    string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	MaxTokens int    `yaml:"max_tokens" env:"ANTHROPIC_MAX_TOKENS" env-default:"1024"`
}

type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url" env:"OLLAMA_BASE_URL" env-default:"http://localhost:11434"`
	Model       string  `yaml:"model" env:"OLLAMA_MODEL" env-default:"qwen2.5-coder:7b"`
	Temperature float64 `yaml:"temperature" env:"OLLAMA_TEMPERATURE" env-default:"0.0"`
	NumPredict  int     `yaml:"num_predict" env:"OLLAMA_NUM_PREDICT" env-default:"1024"`
	NumCtx      int     `yaml:"num_ctx" env:"OLLAMA_NUM_CTX" env-default:"8192"`
	TopK        int     `yaml:"top_k" env:"OLLAMA_TOP_K" env-default:"40"`
	TopP        float64 `yaml:"top_p" env:"OLLAMA_TOP_P" env-default:"0.9"`
}

// QueryConfig shapes synthesized SQL before it reaches the tenant database.
type QueryConfig struct {
	DateFormat string `yaml:"date_format" env:"CHATQ_QUERY_DATE_FORMAT" env-default:"YYYY-MM-DD"`
	// PreQuery is prepended to every executed statement. The wrapped
	// statement is validated again, so it must stay a single read-only query.
	PreQuery string `yaml:"pre_query" env:"CHATQ_QUERY_PRE_QUERY" env-default:""`
	// PostQuery is appended after stripping a trailing semicolon.
	PostQuery string `yaml:"post_query" env:"CHATQ_QUERY_POST_QUERY" env-default:""`
}

// DefaultContinuationSecret is the well-known development key. It is only
// accepted when Env is "local".
const DefaultContinuationSecret = "chatq-default-secret-key-32-bytes!!"

type ContinuationConfig struct {
	Secret string `yaml:"-" env:"CHATQ_ENCRYPT_SECRET" env-default:"chatq-default-secret-key-32-bytes!!"`
}

// MemoryConfig bounds the LLM conversation history kept per conversation id.
type MemoryConfig struct {
	Backend    string `yaml:"backend" env:"CHATQ_MEMORY_BACKEND" env-default:"memory"` // "memory" or "redis"
	Capacity   int    `yaml:"capacity" env:"CHATQ_MEMORY_CAPACITY" env-default:"1000"`
	TTLMinutes int    `yaml:"ttl_minutes" env:"CHATQ_MEMORY_TTL_MINUTES" env-default:"60"`
}

// TTL returns the idle expiry for a conversation.
func (c *MemoryConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// AuthConfig controls how the caller's access profile is resolved.
// The login flow itself lives outside this service; it issues either a
// bearer token or a session cookie that is read here.
type AuthConfig struct {
	// EnableVerification controls whether JWT signatures are validated.
	// Set to false for local development without an auth server.
	EnableVerification bool   `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`
	JWTSecret          string `yaml:"-" env:"AUTH_JWT_SECRET"` // Secret - not in YAML
	JWKSURL            string `yaml:"jwks_url" env:"AUTH_JWKS_URL" env-default:""`
	SessionSecret      string `yaml:"-" env:"AUTH_SESSION_SECRET"` // Secret - not in YAML
	SessionName        string `yaml:"session_name" env:"AUTH_SESSION_NAME" env-default:"chatq_session"`
	DefaultAuthCode    string `yaml:"default_auth_code" env:"AUTH_DEFAULT_AUTH_CODE" env-default:"GUEST"`
	DefaultLevel       int    `yaml:"default_level" env:"AUTH_DEFAULT_LEVEL" env-default:"9"`
}

type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
// A missing config.yaml is not an error; defaults and environment apply.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		if !isNotExist(err) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}

	switch c.Memory.Backend {
	case "memory":
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("memory backend redis requires redis.host")
		}
	default:
		return fmt.Errorf("unknown memory backend %q", c.Memory.Backend)
	}

	if c.Memory.Capacity <= 0 {
		return fmt.Errorf("memory.capacity must be positive")
	}

	if c.Env != "local" && (c.Continuation.Secret == "" || c.Continuation.Secret == DefaultContinuationSecret) {
		return fmt.Errorf("CHATQ_ENCRYPT_SECRET must be set outside the local environment")
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
