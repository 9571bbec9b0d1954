// Command mock-backend runs a deterministic stand-in for the OpenAI Chat
// Completions, Anthropic Messages and Gemini generateContent APIs, for
// demos and end-to-end tests without real credentials.
//
// Prompt markers are documented in package mockbackend.
//
// Configuration:
//
//	MOCK_PORT       - Listen port (default: 9090)
//	MOCK_SLOW_DELAY - Delay for [slow] prompts (default: 3s)
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhuss/chorus/pkg/mockbackend"
)

func main() {
	port := os.Getenv("MOCK_PORT")
	if port == "" {
		port = "9090"
	}
	delay := 3 * time.Second
	if v := os.Getenv("MOCK_SLOW_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Error("invalid MOCK_SLOW_DELAY", "value", v, "error", err)
			os.Exit(1)
		}
		delay = d
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mockbackend.NewHandler(delay),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("mock backend starting", "port", port, "slow_delay", delay)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("mock backend failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("mock backend shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}
