package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rhuss/chorus/pkg/mcpserver"
	"github.com/rhuss/chorus/pkg/transport"
	transporthttp "github.com/rhuss/chorus/pkg/transport/http"
	"github.com/rhuss/chorus/pkg/version"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, load)
		},
	}
}

func serve(ctx context.Context, load configLoader) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	logger := slog.Default()

	catalog, err := buildCatalog(cfg)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	providers, err := buildProviders(cfg, catalog)
	if err != nil {
		return err
	}
	defer providers.Close()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening transcript store: %w", err)
	}
	defer store.Close()

	eng, err := buildEngine(cfg, catalog, providers, store)
	if err != nil {
		return err
	}

	protect, err := buildAuth(cfg)
	if err != nil {
		return err
	}

	metricsPath := ""
	if cfg.Observability.Metrics.Enabled {
		metricsPath = cfg.Observability.Metrics.Path
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithLogger(logger),
		transporthttp.WithProtect(protect),
		transporthttp.WithReadiness(eng.Ready),
		transporthttp.WithMetricsPath(metricsPath),
	}
	if cfg.MCP.Enabled {
		handler := transport.Chain(transport.Recovery(), transport.RequestID(), transport.Logging(logger))(eng)
		opts = append(opts, transporthttp.WithMount(cfg.MCP.Path, mcpserver.New(handler, catalog, version.Get().String()).Handler()))
		slog.Info("mcp endpoint enabled", "path", cfg.MCP.Path)
	}

	srv := transporthttp.NewServer(eng, catalog, store, opts...)
	slog.Info("chorus starting",
		"version", version.Get().String(),
		"port", cfg.Server.Port,
		"models", catalog.Len(),
		"providers", providers.Names(),
		"storage", cfg.Storage.Type,
		"auth", cfg.Auth.Type,
	)
	return srv.Run(ctx)
}
