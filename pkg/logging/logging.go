// Package logging builds the structured slog loggers shared by the services.
//
// Services receive a *slog.Logger at construction time and wrap it with
// NewComponentLogger so every line carries a component attribute. A nil
// logger is always acceptable and turns into a no-op.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Standard field names.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldMangaID   = "manga_id"
	FieldChapterID = "chapter_id"
	FieldPage      = "page"
	FieldTaskID    = "task_id"
)

// Options controls how New builds a logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	Output io.Writer
}

// New returns a logger writing to opts.Output (stderr by default).
func New(opts Options) (*slog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(out, handlerOpts)
	case "json":
		handler = slog.NewJSONHandler(out, handlerOpts)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return slog.New(handler), nil
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}

func NewNop() *slog.Logger {
	return slog.New(noopHandler{})
}

// NewComponentLogger creates a logger with a standardized component attribute.
// If logger is nil, a no-op logger is used as the base.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Int(key string, value int) slog.Attr { return slog.Int(key, value) }

func Bool(key string, value bool) slog.Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (noopHandler) Handle(context.Context, slog.Record) error { return nil }
func (noopHandler) WithAttrs([]slog.Attr) slog.Handler        { return noopHandler{} }
func (noopHandler) WithGroup(string) slog.Handler             { return noopHandler{} }

// RestyLogger adapts a slog logger to the resty client's Logger interface.
type RestyLogger struct {
	Logger *slog.Logger
}

func (l RestyLogger) Errorf(format string, v ...any) {
	l.logger().Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l RestyLogger) Warnf(format string, v ...any) {
	l.logger().Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l RestyLogger) Debugf(format string, v ...any) {
	l.logger().Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l RestyLogger) logger() *slog.Logger {
	if l.Logger == nil {
		return NewNop()
	}
	return l.Logger
}
