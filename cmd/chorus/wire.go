package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rhuss/chorus/pkg/auth"
	"github.com/rhuss/chorus/pkg/auth/apikey"
	"github.com/rhuss/chorus/pkg/auth/jwt"
	"github.com/rhuss/chorus/pkg/auth/noop"
	"github.com/rhuss/chorus/pkg/config"
	"github.com/rhuss/chorus/pkg/engine"
	"github.com/rhuss/chorus/pkg/provider"
	"github.com/rhuss/chorus/pkg/provider/anthropic"
	"github.com/rhuss/chorus/pkg/provider/gemini"
	"github.com/rhuss/chorus/pkg/provider/openaicompat"
	"github.com/rhuss/chorus/pkg/registry"
	"github.com/rhuss/chorus/pkg/storage/memory"
	"github.com/rhuss/chorus/pkg/storage/postgres"
	"github.com/rhuss/chorus/pkg/storage/sqlite"
	"github.com/rhuss/chorus/pkg/transport"
)

// buildCatalog loads the configured catalog file, or the built-in one.
func buildCatalog(cfg *config.Config) (*registry.Registry, error) {
	if cfg.Catalog.Path == "" {
		return registry.DefaultCatalog()
	}
	return registry.LoadCatalog(cfg.Catalog.Path)
}

// buildProviders creates one adapter per provider the catalog references.
// A provider that is not configured or has no credential becomes an
// Unavailable adapter, so its models fail per request instead of the
// process failing at startup.
func buildProviders(cfg *config.Config, catalog *registry.Registry) (*provider.Set, error) {
	var adapters []provider.Adapter
	for _, name := range catalog.Providers() {
		pc, ok := cfg.Provider(name)
		if !ok {
			slog.Warn("catalog references an unconfigured provider", "provider", name)
			adapters = append(adapters, provider.Unavailable(name, "provider is not configured"))
			continue
		}
		if pc.APIKey == "" {
			slog.Warn("provider has no credential, its models will be unavailable",
				"provider", name, "api_key_env", pc.APIKeyEnv)
			adapters = append(adapters, provider.Unavailable(name, "no API key configured for "+name))
			continue
		}

		a, err := newAdapter(pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", name, err)
		}
		slog.Info("provider configured", "provider", name, "type", pc.Type)
		adapters = append(adapters, a)
	}
	return provider.NewSet(adapters...)
}

func newAdapter(pc config.ProviderConfig) (provider.Adapter, error) {
	switch pc.Type {
	case config.ProviderOpenAI:
		return openaicompat.New(openaicompat.Config{
			Name:         pc.Name,
			BaseURL:      pc.BaseURL,
			APIKey:       pc.APIKey,
			Timeout:      pc.Timeout,
			Headers:      pc.Headers,
			ModelMapping: pc.ModelMapping,
			MaxTokens:    pc.MaxTokens,
		})
	case config.ProviderAnthropic:
		return anthropic.New(anthropic.Config{
			Name:      pc.Name,
			BaseURL:   pc.BaseURL,
			APIKey:    pc.APIKey,
			Timeout:   pc.Timeout,
			Headers:   pc.Headers,
			MaxTokens: pc.MaxTokens,
		})
	case config.ProviderGemini:
		return gemini.New(gemini.Config{
			Name:    pc.Name,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			Timeout: pc.Timeout,
			Headers: pc.Headers,
		})
	default:
		return nil, fmt.Errorf("unsupported provider type %q", pc.Type)
	}
}

// buildStore opens the configured transcript store.
func buildStore(ctx context.Context, cfg *config.Config) (transport.TranscriptStore, error) {
	switch cfg.Storage.Type {
	case "memory":
		slog.Info("storage enabled", "type", "memory", "max_size", cfg.Storage.MaxSize)
		return memory.New(cfg.Storage.MaxSize), nil
	case "postgres":
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Storage.Postgres.MaxConns)
		return store, nil
	case "sqlite":
		store, err := sqlite.New(ctx, cfg.Storage.SQLite.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("storage enabled", "type", "sqlite", "path", cfg.Storage.SQLite.Path)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

// buildAuth returns the middleware protecting the API routes.
func buildAuth(cfg *config.Config) (func(http.Handler) http.Handler, error) {
	chain := &auth.AuthChain{DefaultDecision: auth.No}

	switch cfg.Auth.Type {
	case "none":
		chain.Authenticators = []auth.Authenticator{&noop.Authenticator{Tier: cfg.Auth.DefaultTier}}
	case "apikey":
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.Auth.APIKeys))
		for _, k := range cfg.Auth.APIKeys {
			entries = append(entries, apikey.RawKeyEntry{
				Key:      k.Key,
				Identity: auth.Identity{Subject: k.Subject, ServiceTier: k.ServiceTier},
			})
		}
		chain.Authenticators = []auth.Authenticator{apikey.New(entries)}
	case "jwt":
		chain.Authenticators = []auth.Authenticator{jwt.New(jwt.Config{
			Issuer:      cfg.Auth.JWT.Issuer,
			Audience:    cfg.Auth.JWT.Audience,
			JWKSURL:     cfg.Auth.JWT.JWKSURL,
			UserClaim:   cfg.Auth.JWT.UserClaim,
			TierClaim:   cfg.Auth.JWT.TierClaim,
			ScopesClaim: cfg.Auth.JWT.ScopesClaim,
			DefaultTier: cfg.Auth.DefaultTier,
		})}
	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Auth.Type)
	}

	var limiter auth.RateLimiter
	if rl := cfg.Auth.RateLimit; rl.RequestsPerMinute > 0 || len(rl.Tiers) > 0 {
		tiers := make(map[string]auth.TierConfig, len(rl.Tiers))
		for name, t := range rl.Tiers {
			tiers[name] = auth.TierConfig{RequestsPerMinute: t.RequestsPerMinute, Burst: t.Burst}
		}
		limiter = auth.NewInProcessLimiter(tiers, rl.RequestsPerMinute)
	}

	slog.Info("authentication configured", "type", cfg.Auth.Type, "rate_limited", limiter != nil)
	return auth.Middleware(chain, limiter, auth.DefaultBypassEndpoints), nil
}

// buildEngine wires catalog, providers and store into an Engine.
func buildEngine(cfg *config.Config, catalog *registry.Registry, providers *provider.Set, store transport.TranscriptStore) (*engine.Engine, error) {
	return engine.New(catalog, providers, store, engine.Config{
		DefaultDeadline: cfg.Engine.DefaultDeadline,
		MaxInFlight:     cfg.Engine.MaxInFlight,
		MaxModels:       cfg.Engine.MaxModels,
		PersistTimeout:  cfg.Engine.PersistTimeout,
	})
}
