package observability

import (
	"context"
	"log/slog"
	"time"
)

// NewSlogLogger adapts a *slog.Logger to Logger. A nil logger discards
// everything.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return slogLogger{l: l}
}

type slogLogger struct{ l *slog.Logger }

func (s slogLogger) Debug(msg string, fields ...Field) { s.log(slog.LevelDebug, msg, fields) }
func (s slogLogger) Info(msg string, fields ...Field)  { s.log(slog.LevelInfo, msg, fields) }
func (s slogLogger) Warn(msg string, fields ...Field)  { s.log(slog.LevelWarn, msg, fields) }
func (s slogLogger) Error(msg string, fields ...Field) { s.log(slog.LevelError, msg, fields) }

func (s slogLogger) With(fields ...Field) Logger {
	return slogLogger{l: s.l.With(attrsToAny(fields)...)}
}

func (s slogLogger) log(level slog.Level, msg string, fields []Field) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	s.l.LogAttrs(ctx, level, msg, attrs(fields)...)
}

func attrs(fields []Field) []slog.Attr {
	out := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		out = append(out, attr(f))
	}
	return out
}

func attrsToAny(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, attr(f))
	}
	return out
}

func attr(f Field) slog.Attr {
	switch v := f.Value().(type) {
	case string:
		return slog.String(f.Key(), v)
	case int:
		return slog.Int(f.Key(), v)
	case int64:
		return slog.Int64(f.Key(), v)
	case bool:
		return slog.Bool(f.Key(), v)
	case time.Duration:
		return slog.Duration(f.Key(), v)
	case error:
		return slog.String(f.Key(), v.Error())
	case nil:
		return slog.String(f.Key(), "<nil>")
	}
	return slog.Any(f.Key(), f.Value())
}

// ParseLevel maps a textual level name onto a slog level. Unknown names
// fall back to info.
func ParseLevel(name string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
