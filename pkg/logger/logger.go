// Package logger builds the structured slog logger shared by the bot and the HTTP API.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Proton-105/sigmapips-bot/pkg/config"
)

// SentryReportedKey marks a record whose error has already been captured in Sentry,
// so the Sentry log branch skips it.
const SentryReportedKey = "sentry_reported"

// New creates a logger according to cfg. The returned LevelVar can be used to change
// the level at runtime.
func New(cfg config.Config) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Logger.Level))

	opts := &slog.HandlerOptions{Level: level}
	out := output(cfg.Logger)

	var handler slog.Handler
	if strings.EqualFold(cfg.Logger.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	if cfg.Sentry.Enabled {
		sentryHandler := slogsentry.Option{Level: slog.LevelError}.NewSentryHandler()
		handler = slogmulti.Fanout(
			handler,
			slogmulti.Router().Add(sentryHandler, notReportedToSentry).Handler(),
		)
	}

	log := slog.New(NewMaskingHandler(handler)).With(slog.String("env", cfg.AppEnv))
	return log, level
}

func notReportedToSentry(_ context.Context, r slog.Record) bool {
	reported := false
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == SentryReportedKey && a.Value.Kind() == slog.KindBool && a.Value.Bool() {
			reported = true
			return false
		}
		return true
	})
	return !reported
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record; handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func output(cfg config.LoggerConfig) io.Writer {
	if cfg.File == "" {
		return os.Stdout
	}

	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
}
