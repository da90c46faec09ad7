// Package config loads service configuration from config.yaml with
// environment variable overrides. Secrets only come from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the query orchestration service.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"`

	Database  DatabaseConfig  `yaml:"database"`
	LLM       LLMConfig       `yaml:"llm"`
	Execution ExecutionConfig `yaml:"execution"`
	Auth      AuthConfig      `yaml:"auth"`

	// MigrationsPath is the directory containing app database migrations.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// CredentialsKey encrypts registered connection passwords at rest.
	// 32 bytes base64 (openssl rand -base64 32) or any passphrase.
	// The server refuses to start without it.
	CredentialsKey string `yaml:"-" env:"CREDENTIALS_KEY"`
}

// DatabaseConfig is the application database (PostgreSQL).
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"sqlagent"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"sqlagent"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
}

// ConnectionString returns a PostgreSQL connection string for the app database.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LLMConfig configures the generation-model provider.
type LLMConfig struct {
	// Provider selects the client implementation: "openai" or "anthropic".
	Provider string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	// BaseURL overrides the provider endpoint (any OpenAI-compatible server).
	BaseURL string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model   string `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4o"`
	APIKey  string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML

	// RequestTimeoutSeconds bounds each generation-model call. Distinct from
	// the execution statement timeout.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" env:"LLM_REQUEST_TIMEOUT_SECONDS" env-default:"30"`
}

// RequestTimeout returns the generation-call timeout as a duration.
func (c *LLMConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ExecutionConfig bounds statement execution against target databases.
type ExecutionConfig struct {
	StatementTimeoutSeconds   int `yaml:"statement_timeout_seconds" env:"EXEC_STATEMENT_TIMEOUT_SECONDS" env-default:"30"`
	MaxRows                   int `yaml:"max_rows" env:"EXEC_MAX_ROWS" env-default:"1000"`
	PoolAcquireTimeoutSeconds int `yaml:"pool_acquire_timeout_seconds" env:"EXEC_POOL_ACQUIRE_TIMEOUT_SECONDS" env-default:"5"`
	PoolMaxConns              int `yaml:"pool_max_conns" env:"EXEC_POOL_MAX_CONNS" env-default:"5"`
	// ConnectionTTLMinutes is how long idle target-database pools are kept.
	ConnectionTTLMinutes int `yaml:"connection_ttl_minutes" env:"EXEC_CONNECTION_TTL_MINUTES" env-default:"5"`
}

// StatementTimeout returns the per-statement ceiling as a duration.
func (c *ExecutionConfig) StatementTimeout() time.Duration {
	return time.Duration(c.StatementTimeoutSeconds) * time.Second
}

// PoolAcquireTimeout returns the bounded pool wait as a duration.
func (c *ExecutionConfig) PoolAcquireTimeout() time.Duration {
	return time.Duration(c.PoolAcquireTimeoutSeconds) * time.Second
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	// Secret verifies HS256 bearer tokens. Token issuance is external.
	Secret string `yaml:"-" env:"AUTH_SECRET"`
	// EnableVerification can be disabled for local development.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`
}

// Load reads config.yaml with environment overrides and validates secrets.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// A missing file is fine as long as the environment is complete.
		if os.IsNotExist(err) {
			if envErr := cleanenv.ReadEnv(cfg); envErr != nil {
				return nil, fmt.Errorf("read environment: %w", envErr)
			}
		} else {
			return nil, fmt.Errorf("read config.yaml: %w", err)
		}
	}

	if cfg.CredentialsKey == "" {
		return nil, fmt.Errorf("CREDENTIALS_KEY is required")
	}
	if cfg.Auth.EnableVerification && cfg.Auth.Secret == "" {
		return nil, fmt.Errorf("AUTH_SECRET is required when auth verification is enabled")
	}

	return cfg, nil
}
