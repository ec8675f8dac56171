package logx

import (
	"log/slog"
	"os"
	"strings"
)

type slogLogger struct {
	l *slog.Logger
}

// New builds a JSON slog-backed Logger at the given level. Unknown levels
// fall back to info.
func New(level string) Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(level)})
	return &slogLogger{l: slog.New(h)}
}

// Wrap adapts an existing *slog.Logger.
func Wrap(l *slog.Logger) Logger { return &slogLogger{l: l} }

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func (s *slogLogger) Debug(msg string, fields ...Field) { s.l.Debug(msg, args(fields)...) }
func (s *slogLogger) Info(msg string, fields ...Field)  { s.l.Info(msg, args(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...Field)  { s.l.Warn(msg, args(fields)...) }
func (s *slogLogger) Error(msg string, fields ...Field) { s.l.Error(msg, args(fields)...) }

func (s *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{l: s.l.With(args(fields)...)}
}

// Sync is a no-op; slog handlers do not buffer.
func (s *slogLogger) Sync() error { return nil }

func args(fields []Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}
