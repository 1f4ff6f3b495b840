// File: internal/infra/logging/logging.go
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"telegram-sticker-cloner/internal/config"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// New creates a zerolog logger configured from config.
// Supports "trace" | "debug" | "info" | "warn" | "error" levels
// and "json" | "console" formats.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" || dev {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		base = zerolog.New(out).With().Timestamp().Logger()
	} else {
		base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	if cfg.Sampling && !dev {
		sampled := base.Sample(&zerolog.BasicSampler{N: 100})
		return &sampled
	}
	return &base
}

// Component returns a sub-logger tagged with the component name.
func Component(base *zerolog.Logger, name string) *zerolog.Logger {
	l := base.With().Str("component", name).Logger()
	return &l
}

type ctxKey string

const (
	ctxTraceID ctxKey = "trace_id"
	ctxTgID    ctxKey = "tg_id"
)

// With attaches trace_id and tg_id from ctx.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := base.With()
	if v, ok := ctx.Value(ctxTraceID).(string); ok {
		l = l.Str("trace_id", v)
	}
	if v, ok := ctx.Value(ctxTgID).(int64); ok {
		l = l.Int64("tg_id", v)
	}
	logger := l.Logger()
	return &logger
}

// TraceDuration logs start and end with elapsed duration at TRACE level.
// Usage: defer logging.TraceDuration(logger, "LedgerUC.Redeem")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("method", name).Msg("start")
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = uuid.NewString()
	}
	return context.WithValue(ctx, ctxTraceID, id)
}

func WithTgID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxTgID, id)
}

func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(ctxTraceID).(string)
	return v
}
