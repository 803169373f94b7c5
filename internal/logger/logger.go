package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/academy-ledger/internal/config"
)

// NewLogger builds the service logger writing to stdout
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

// newLogger tags every line with the service and environment. Record times are
// rendered in the academy timezone, the same zone month boundaries are decided in.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)
	loc := cfg.Application.Location()

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.TimeValue(a.Value.Time().In(loc))
			}
			return a
		},
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logging.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	if cfg.Application.Name != "" {
		logger = logger.With("service", cfg.Application.Name, "env", cfg.Application.Env)
	}
	logger.Info("Logger initialized", "level", level.String(), "timezone", loc.String())
	return logger
}

// parseLevel accepts slog level names, with offsets such as "warn+2", and falls back to info
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
