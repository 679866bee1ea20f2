package repository

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/pressly/goose/v3"
)

// Migrate applies every pending migration in fsys to conn and logs each
// applied file through logger. The goose package globals are left untouched.
func Migrate(ctx context.Context, conn *sql.DB, dialect goose.Dialect, fsys fs.FS, logger *slog.Logger) error {
	provider, err := goose.NewProvider(dialect, conn, fsys, goose.WithLogger(gooseLogger{logger}))
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	for _, r := range results {
		logger.InfoContext(ctx, "migration applied",
			slog.String("dialect", string(dialect)),
			slog.String("source", r.Source.Path),
			slog.Int64("version", r.Source.Version),
			slog.Duration("duration", r.Duration),
		)
	}
	return nil
}

// gooseLogger adapts a *slog.Logger to goose.Logger.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...), slog.String("component", "goose"))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...), slog.String("component", "goose"))
	os.Exit(1)
}
