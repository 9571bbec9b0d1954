package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, CHORUS_CONFIG env, ./config.yaml, /etc/chorus/config.yaml)
//  3. CHORUS_* environment variable overrides
//  4. Secret resolution (_file and _env suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveSecrets(&cfg); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. CHORUS_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/chorus/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("CHORUS_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/chorus/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values;
// a providers list in the file replaces the default list.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps CHORUS_* environment variables onto config
// fields. Malformed numbers and durations are errors rather than being
// silently ignored.
func applyEnvOverrides(cfg *Config) error {
	var errs []string
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}
	envDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %q is not a duration", key, v))
				return
			}
			*dst = d
		}
	}
	envString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	envInt("CHORUS_PORT", &cfg.Server.Port)
	envDuration("CHORUS_DEFAULT_DEADLINE", &cfg.Engine.DefaultDeadline)
	envInt("CHORUS_MAX_IN_FLIGHT", &cfg.Engine.MaxInFlight)
	envInt("CHORUS_MAX_MODELS", &cfg.Engine.MaxModels)
	envString("CHORUS_CATALOG", &cfg.Catalog.Path)
	envString("CHORUS_STORAGE", &cfg.Storage.Type)
	envInt("CHORUS_STORAGE_SIZE", &cfg.Storage.MaxSize)
	envString("CHORUS_POSTGRES_DSN", &cfg.Storage.Postgres.DSN)
	envString("CHORUS_SQLITE_PATH", &cfg.Storage.SQLite.Path)
	envString("CHORUS_AUTH_TYPE", &cfg.Auth.Type)
	envString("CHORUS_JWT_JWKS_URL", &cfg.Auth.JWT.JWKSURL)
	envString("CHORUS_JWT_ISSUER", &cfg.Auth.JWT.Issuer)
	envInt("CHORUS_RATE_LIMIT_RPM", &cfg.Auth.RateLimit.RequestsPerMinute)
	envString("CHORUS_LOG_FORMAT", &cfg.Logging.Format)

	if v := os.Getenv("CHORUS_MCP_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("CHORUS_MCP_ENABLED: %q is not a boolean", v))
		} else {
			cfg.MCP.Enabled = b
		}
	}

	// CHORUS_API_KEYS: JSON array of API key configs.
	if v := os.Getenv("CHORUS_API_KEYS"); v != "" {
		keys, err := parseAPIKeysJSON(v)
		if err != nil {
			errs = append(errs, "CHORUS_API_KEYS: "+err.Error())
		} else if len(keys) > 0 {
			cfg.Auth.APIKeys = keys
		}
	}

	// CHORUS_PROVIDER_<NAME>_BASE_URL redirects one provider, e.g. to the
	// mock backend.
	for i := range cfg.Providers {
		envString(providerEnvKey(cfg.Providers[i].Name, "BASE_URL"), &cfg.Providers[i].BaseURL)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// providerEnvKey builds CHORUS_PROVIDER_<NAME>_<SUFFIX>, upper-casing the
// name and mapping non-alphanumerics to underscores.
func providerEnvKey(name, suffix string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return "CHORUS_PROVIDER_" + mapped + "_" + suffix
}

// parseAPIKeysJSON parses a JSON array of API key configurations.
func parseAPIKeysJSON(jsonStr string) ([]APIKeyConfig, error) {
	var keys []APIKeyConfig
	if err := json.Unmarshal([]byte(jsonStr), &keys); err != nil {
		return nil, fmt.Errorf("parsing API keys JSON: %w", err)
	}
	return keys, nil
}

// resolveSecrets fills secret fields from their _file references and, for
// providers, from the environment variable named by api_key_env. An
// explicit value always wins. A provider left without a credential is not
// an error here; it is wired as unavailable at startup.
func resolveSecrets(cfg *Config) error {
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.APIKey != "" {
			continue
		}
		if p.APIKeyFile != "" {
			val, err := readSecretFile(p.APIKeyFile)
			if err != nil {
				return fmt.Errorf("providers[%d] (%s).api_key_file: %w", i, p.Name, err)
			}
			p.APIKey = val
			continue
		}
		if p.APIKeyEnv != "" {
			p.APIKey = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
		}
	}

	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}

	for i := range cfg.Auth.APIKeys {
		if cfg.Auth.APIKeys[i].KeyFile != "" && cfg.Auth.APIKeys[i].Key == "" {
			val, err := readSecretFile(cfg.Auth.APIKeys[i].KeyFile)
			if err != nil {
				return fmt.Errorf("auth.api_keys[%d].key_file: %w", i, err)
			}
			cfg.Auth.APIKeys[i].Key = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
