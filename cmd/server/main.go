// Package main is the entry point for the chat directory server.
//
// main stays minimal: load configuration, build the logger and tracing,
// hand both to internal/server, and block until shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/chat-directory/internal/config"
	"github.com/sakif/chat-directory/internal/server"
	"github.com/sakif/chat-directory/internal/telemetry"
)

func main() {
	// === 1. READ CONFIGURATION ===
	// .env (if present) and the environment; see internal/config.
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// === 3. TRACING ===
	// A no-op unless OTEL_ENDPOINT is set.
	shutdownTracing, err := telemetry.Setup(ctx, server.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", slog.String("error", err.Error()))
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("flushing traces", slog.String("error", err.Error()))
		}
	}()

	// === 4. CREATE AND START THE SERVER ===
	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
