// Package logging настраивает zerolog для сервиса и переносит логгер через context.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"
)

// Config - параметры логгера.
type Config struct {
	Level  string // trace, debug, info, warn, error, disabled
	Format string // json, console, auto
	Output io.Writer
}

var (
	mu            sync.RWMutex
	defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// New создает логгер по конфигурации.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := out.(*os.File); ok {
			if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
				format = "console"
			}
		}
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := ParseLevel(cfg.Level)
	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// ParseLevel разбирает уровень логирования; неизвестное значение дает info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "disabled", "none", "off":
		return zerolog.Disabled
	case "warning":
		return zerolog.WarnLevel
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		return l
	}
	return zerolog.InfoLevel
}

// GormLevel подбирает уровень логов gorm под уровень сервиса.
func GormLevel(level string) gormlogger.LogLevel {
	switch l := ParseLevel(level); {
	case l == zerolog.Disabled:
		return gormlogger.Silent
	case l <= zerolog.DebugLevel:
		return gormlogger.Info
	case l <= zerolog.WarnLevel:
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

// SetDefault заменяет логгер по умолчанию.
func SetDefault(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// Default возвращает логгер по умолчанию.
func Default() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := defaultLogger
	return &l
}

type contextKey int

const loggerKey contextKey = iota

// WithLogger кладет логгер в контекст.
func WithLogger(ctx context.Context, l *zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext достает логгер из контекста или возвращает логгер по умолчанию.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && l != nil {
			return l
		}
	}
	return Default()
}

// WithFields добавляет поля к логгеру в контексте.
func WithFields(ctx context.Context, fields map[string]any) context.Context {
	l := FromContext(ctx).With().Fields(fields).Logger()
	return WithLogger(ctx, &l)
}
