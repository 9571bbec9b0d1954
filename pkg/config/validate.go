package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration for required fields and valid values.
// All problems are reported together, each with its field path.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Engine.DefaultDeadline <= 0 {
		errs = append(errs, fmt.Errorf("engine.default_deadline must be > 0, got %s", c.Engine.DefaultDeadline))
	}
	if c.Engine.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("engine.max_in_flight must be >= 0, got %d", c.Engine.MaxInFlight))
	}
	if c.Engine.MaxModels < 0 {
		errs = append(errs, fmt.Errorf("engine.max_models must be >= 0, got %d", c.Engine.MaxModels))
	}

	errs = append(errs, c.validateProviders()...)

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite.path is required when storage.type is \"sqlite\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\" or \"sqlite\", got %q", c.Storage.Type))
	}

	switch c.Auth.Type {
	case "none":
	case "apikey":
		if len(c.Auth.APIKeys) == 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys must not be empty when auth.type is \"apikey\""))
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" && k.KeyFile == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
			}
			if k.Subject == "" {
				errs = append(errs, fmt.Errorf("auth.api_keys[%d]: subject is required", i))
			}
		}
	case "jwt":
		if c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("auth.jwt.jwks_url is required when auth.type is \"jwt\""))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.type must be \"none\", \"apikey\" or \"jwt\", got %q", c.Auth.Type))
	}
	if c.Auth.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.requests_per_minute must be >= 0"))
	}
	for tier, l := range c.Auth.RateLimit.Tiers {
		if l.RequestsPerMinute < 0 || l.Burst < 0 {
			errs = append(errs, fmt.Errorf("auth.rate_limit.tiers.%s: limits must be >= 0", tier))
		}
	}

	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		errs = append(errs, fmt.Errorf("mcp.path must start with \"/\", got %q", c.MCP.Path))
	}
	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

func (c *Config) validateProviders() []error {
	var errs []error
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("providers[%d]: name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = true

		switch p.Type {
		case ProviderOpenAI:
			if p.BaseURL == "" {
				errs = append(errs, fmt.Errorf("providers[%d] (%s): base_url is required for type %q", i, p.Name, p.Type))
			}
		case ProviderAnthropic, ProviderGemini:
		default:
			errs = append(errs, fmt.Errorf("providers[%d] (%s): type must be \"openai\", \"anthropic\" or \"gemini\", got %q", i, p.Name, p.Type))
		}
		if p.Timeout < 0 {
			errs = append(errs, fmt.Errorf("providers[%d] (%s): timeout must be >= 0", i, p.Name))
		}
	}
	return errs
}
