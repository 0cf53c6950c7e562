// Package log wraps go.uber.org/zap with the context-aware helpers the rest
// of the module calls through (Debug/Info/Warn/Error, Any/Cause), so no
// package reaches for the standard library's log or fmt.Println directly.
package log

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Field is a structured logging field.
type Field = zap.Field

// String builds a string field.
func String(key, value string) Field { return zap.String(key, value) }

// Any builds a field from an arbitrary value.
func Any(key string, value any) Field { return zap.Any(key, value) }

// Cause builds an "error" field from err. Returns a no-op field if err is nil.
func Cause(err error) Field {
	if err == nil {
		return zap.Skip()
	}

	return zap.NamedError("error", err)
}

// Hook augments every log call with extra fields derived from the context.
type Hook interface {
	Apply(ctx context.Context, msg string, fields ...Field) []Field
}

// HookFunc adapts a plain function to the Hook interface.
type HookFunc func(ctx context.Context, msg string, fields ...Field) []Field

func (f HookFunc) Apply(ctx context.Context, msg string, fields ...Field) []Field {
	return f(ctx, msg, fields...)
}

// Logger is a context-aware logger built on a *zap.Logger.
type Logger struct {
	mu    sync.RWMutex
	z     *zap.Logger
	hooks []Hook
}

// New wraps z as a Logger.
func New(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

// AddHook registers a hook, applied to every subsequent log call.
func (l *Logger) AddHook(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.hooks = append(l.hooks, h)
}

func (l *Logger) withHooks(ctx context.Context, msg string, fields []Field) []Field {
	l.mu.RLock()
	hooks := l.hooks
	l.mu.RUnlock()

	for _, h := range hooks {
		fields = h.Apply(ctx, msg, fields...)
	}

	return fields
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.z.Debug(msg, l.withHooks(ctx, msg, fields)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.z.Info(msg, l.withHooks(ctx, msg, fields)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.z.Warn(msg, l.withHooks(ctx, msg, fields)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.z.Error(msg, l.withHooks(ctx, msg, fields)...)
}

func (l *Logger) Sync() error {
	return l.z.Sync()
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(zap.NewNop())
)

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	defaultLogger = l
}

func get() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()

	return defaultLogger
}

func Debug(ctx context.Context, msg string, fields ...Field) { get().Debug(ctx, msg, fields...) }
func Info(ctx context.Context, msg string, fields ...Field)  { get().Info(ctx, msg, fields...) }
func Warn(ctx context.Context, msg string, fields ...Field)  { get().Warn(ctx, msg, fields...) }
func Error(ctx context.Context, msg string, fields ...Field) { get().Error(ctx, msg, fields...) }
