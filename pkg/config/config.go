// Package config provides unified configuration for the chorus gateway.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (CHORUS_ prefix)
//  4. Secret resolution (_file and _env suffix fields)
//  5. Validation
package config

import "time"

// Config holds all configuration for the chorus gateway.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Engine        EngineConfig        `yaml:"engine"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Providers     []ProviderConfig    `yaml:"providers"`
	Storage       StorageConfig       `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	MCP           MCPConfig           `yaml:"mcp"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 120s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 30s
	MaxBodySize     int64         `yaml:"max_body_size"`    // default: 1 MB
}

// EngineConfig holds fan-out settings.
type EngineConfig struct {
	DefaultDeadline time.Duration `yaml:"default_deadline"` // default: 30s
	MaxInFlight     int           `yaml:"max_in_flight"`    // default: 64
	MaxModels       int           `yaml:"max_models"`       // default: 8
	PersistTimeout  time.Duration `yaml:"persist_timeout"`  // default: 5s
}

// CatalogConfig selects the model catalog. An empty path uses the
// built-in catalog.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Provider types.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// ProviderConfig describes one upstream provider. Catalog entries refer to
// it by Name. The credential is resolved from APIKey, then APIKeyFile,
// then the environment variable named by APIKeyEnv.
type ProviderConfig struct {
	Name         string            `yaml:"name"`
	Type         string            `yaml:"type"` // "openai", "anthropic" or "gemini"
	BaseURL      string            `yaml:"base_url"`
	APIKey       string            `yaml:"api_key"`
	APIKeyFile   string            `yaml:"api_key_file"`
	APIKeyEnv    string            `yaml:"api_key_env"`
	Headers      map[string]string `yaml:"headers"`
	ModelMapping map[string]string `yaml:"model_mapping"`
	MaxTokens    int               `yaml:"max_tokens"`
	Timeout      time.Duration     `yaml:"timeout"`
}

// StorageConfig holds transcript store settings.
type StorageConfig struct {
	Type     string         `yaml:"type"`     // "memory", "postgres" or "sqlite", default: "memory"
	MaxSize  int            `yaml:"max_size"` // sessions kept by the memory store, default: 10000
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: true
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"` // default: "chorus.db"
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Type      string          `yaml:"type"`     // "none", "apikey" or "jwt", default: "none"
	APIKeys   []APIKeyConfig  `yaml:"api_keys"` // entries for type=apikey
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// DefaultTier is the tier of anonymous callers when type is "none".
	DefaultTier string `yaml:"default_tier"` // default: "default"
}

// APIKeyConfig describes a single API key entry.
type APIKeyConfig struct {
	Key         string `yaml:"key" json:"key"`
	KeyFile     string `yaml:"key_file" json:"key_file"` // _file variant for key
	Subject     string `yaml:"subject" json:"subject"`
	ServiceTier string `yaml:"service_tier" json:"service_tier"`
}

// JWTConfig holds JWT validation settings.
type JWTConfig struct {
	Issuer      string `yaml:"issuer"`
	Audience    string `yaml:"audience"`
	JWKSURL     string `yaml:"jwks_url"`
	UserClaim   string `yaml:"user_claim"`   // default: "sub"
	TierClaim   string `yaml:"tier_claim"`   // default: "tier"
	ScopesClaim string `yaml:"scopes_claim"` // default: "scope"
}

// RateLimitConfig sets per-subject request budgets. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute int                  `yaml:"requests_per_minute"`
	Tiers             map[string]TierLimit `yaml:"tiers"`
}

// TierLimit overrides the request budget for one service tier.
type TierLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	Burst             int `yaml:"burst"`
}

// MCPConfig controls the MCP tool endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Path    string `yaml:"path"`    // default: "/mcp"
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// LoggingConfig selects the log level, format and debug categories.
// CHORUS_LOG_LEVEL and CHORUS_DEBUG take precedence.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated categories
}

// Defaults returns a Config with all default values filled in. The default
// provider list covers the built-in catalog and reads credentials from the
// providers' conventional environment variables.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     1 << 20,
		},
		Engine: EngineConfig{
			DefaultDeadline: 30 * time.Second,
			MaxInFlight:     64,
			MaxModels:       8,
			PersistTimeout:  5 * time.Second,
		},
		Providers: []ProviderConfig{
			{Name: "openai", Type: ProviderOpenAI, BaseURL: "https://api.openai.com", APIKeyEnv: "OPENAI_API_KEY"},
			{Name: "anthropic", Type: ProviderAnthropic, APIKeyEnv: "ANTHROPIC_API_KEY"},
			{Name: "gemini", Type: ProviderGemini, APIKeyEnv: "GEMINI_API_KEY"},
			{Name: "openrouter", Type: ProviderOpenAI, BaseURL: "https://openrouter.ai/api", APIKeyEnv: "OPENROUTER_API_KEY",
				Headers: map[string]string{"X-Title": "chorus"}},
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxSize: 10000,
			Postgres: PostgresConfig{
				MaxConns:       10,
				MigrateOnStart: true,
			},
			SQLite: SQLiteConfig{
				Path: "chorus.db",
			},
		},
		Auth: AuthConfig{
			Type:        "none",
			DefaultTier: "default",
		},
		MCP: MCPConfig{
			Path: "/mcp",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Provider returns the provider named name.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
