// Command directory is a terminal client for the chat directory server.
//
//	directory register [-name N] [-email E]
//	directory login [-name N]
//	directory users [filter]
//	directory chat <userID>
//	directory watch
//
// DIRECTORY_API_URL and DIRECTORY_TOKEN are read once at startup. When
// REDIS_URL is set, refresh events are shared with other clients.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/chat-directory/internal/client/cli"
	"github.com/sakif/chat-directory/internal/client/directory"
	"github.com/sakif/chat-directory/internal/config"
	"github.com/sakif/chat-directory/internal/events"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var bus events.Bus = events.NewMemoryBus()
	if cfg.RedisURL != "" {
		redisBus, err := events.NewRedisBus(ctx, cfg.RedisURL, "chat-directory:", logger)
		if err != nil {
			logger.Warn("falling back to local refresh events", slog.String("error", err.Error()))
		} else {
			bus = redisBus
		}
	}
	defer bus.Close()

	client := directory.New(directory.Options{
		BaseURL:   cfg.APIURL,
		Token:     cfg.Token,
		Timeout:   cfg.Timeout,
		Publisher: bus,
		Logger:    logger,
	})

	return cli.NewApp(client, bus, os.Stdin, os.Stdout, logger).Run(ctx, os.Args[1:])
}
