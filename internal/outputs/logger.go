package outputs

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/nickborgers/monorepo/scholar-citations/internal/browser"
	"github.com/nickborgers/monorepo/scholar-citations/internal/config"
	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

// Logger reports snapshots and failures as structured log records on stderr.
// Stdout is left for the confirmation line.
type Logger struct {
	logger *slog.Logger
	config *config.LoggingConfig
}

// NewLogger creates a new structured logger
func NewLogger(cfg *config.LoggingConfig) (*Logger, error) {
	return newLogger(cfg, os.Stderr), nil
}

func newLogger(cfg *config.LoggingConfig, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		logger: slog.New(handler),
		config: cfg,
	}
}

// Slog returns the underlying logger so it can be installed as the default
func (l *Logger) Slog() *slog.Logger {
	return l.logger
}

// Write logs a one-line summary of the snapshot
func (l *Logger) Write(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	attrs := []any{
		"source", snapshot.Source,
		"fetched_at", snapshot.FetchedAt.String(),
	}
	if snapshot.Name != nil {
		attrs = append(attrs, "name", *snapshot.Name)
	}
	for _, kind := range models.KnownMetrics {
		if v := snapshot.Metric(kind); v != nil {
			attrs = append(attrs, kind.Label(), *v)
		} else {
			attrs = append(attrs, kind.Label(), nil)
		}
	}

	l.logger.InfoContext(ctx, "snapshot", attrs...)
	return nil
}

// ReportFailure logs a failed fetch
func (l *Logger) ReportFailure(ctx context.Context, source string, err error) error {
	l.logger.ErrorContext(ctx, "fetch_failed",
		"source", source,
		"category", browser.ErrorCategory(err),
		"error", err,
	)
	return nil
}

// Name returns the output module name
func (l *Logger) Name() string {
	return "logger"
}

// parseLogLevel converts string to slog.Level
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
