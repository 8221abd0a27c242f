// Package log wraps log/slog with the configuration and error conventions
// used across oflow.
package log

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync/atomic"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
)

// Logger is a *slog.Logger that remembers its Config and knows how to
// expand OFlowError chains. Debug, Info, Warn, Error and their Context
// variants come from the embedded slog logger.
type Logger struct {
	*slog.Logger
	config Config
}

// New builds a Logger writing to config.Output.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:     config.Level.ToSlogLevel(),
		AddSource: config.AddSource,
	}

	w := config.Output.Writer()
	var handler slog.Handler = slog.NewJSONHandler(w, opts)
	if config.Format == FormatText {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	if config.ServiceVersion != "" {
		l = l.With("version", config.ServiceVersion)
	}
	return &Logger{Logger: l, config: config}
}

// Default logs per DefaultConfig.
func Default() *Logger { return New(DefaultConfig()) }

// Development logs per DevelopmentConfig.
func Development() *Logger { return New(DevelopmentConfig()) }

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	return New(Config{Level: LevelError, Output: OutputDiscard()})
}

// With returns a Logger that adds args to every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), config: l.config}
}

// Named scopes the logger to a component, e.g. "identity" or "route".
func (l *Logger) Named(component string) *Logger {
	return l.With("component", component)
}

// WithError adds error details to the logger.
// An OFlowError anywhere in the chain contributes error_code and cause.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}

	var oe *errors.OFlowError
	if stderrors.As(err, &oe) {
		args := []any{
			"error", oe.Message,
			"error_code", string(oe.Code),
		}
		if oe.Cause != nil {
			args = append(args, "cause", oe.Cause.Error())
		}
		return l.With(args...)
	}

	return l.With("error", err.Error())
}

// LogError logs err with its code and suggestions at error level.
func (l *Logger) LogError(msg string, err error) {
	if err == nil {
		return
	}

	var oe *errors.OFlowError
	if !stderrors.As(err, &oe) {
		l.Error(msg, "error", err.Error())
		return
	}

	args := []any{
		"error_code", string(oe.Code),
		"error_message", oe.Message,
	}
	if len(oe.Suggestions) > 0 {
		args = append(args, "suggestions", oe.Suggestions)
	}
	if oe.Cause != nil {
		args = append(args, "cause", oe.Cause.Error())
	}
	l.Error(msg, args...)
}

// Enabled reports whether records at level are emitted.
func (l *Logger) Enabled(ctx context.Context, level Level) bool {
	return l.Logger.Enabled(ctx, level.ToSlogLevel())
}

// Slog exposes the underlying *slog.Logger for libraries that want one.
func (l *Logger) Slog() *slog.Logger { return l.Logger }

// Config returns the configuration the logger was built with.
func (l *Logger) Config() Config { return l.config }

var defaultLogger atomic.Pointer[Logger]

// SetDefault sets the process-wide logger returned by L.
func SetDefault(logger *Logger) {
	defaultLogger.Store(logger)
}

// L returns the process-wide logger, creating a default one on first use.
func L() *Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := Default()
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	return defaultLogger.Load()
}
