package logging

import (
	"context"
	"io"
	"log/slog"
	"sort"
)

// LevelFatal sits above slog.LevelError so handlers print it distinctly.
const LevelFatal = slog.Level(12)

// SlogLogger adapts a *slog.Logger to Logger. Children created with
// WithFields share the parent's level.
type SlogLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

// NewSlogLogger wraps logger. A nil logger means slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelDebug)
	return &SlogLogger{logger: logger, level: lv}
}

// NewTextLogger builds a slog text logger on w at the given level.
// format "json" selects slog's JSON handler instead.
func NewTextLogger(w io.Writer, format string, level Level) *SlogLogger {
	lv := new(slog.LevelVar)
	lv.Set(toSlogLevel(level))

	opts := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &SlogLogger{logger: slog.New(h), level: lv}
}

func toSlogLevel(l Level) slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	case FatalLevel:
		return LevelFatal
	default:
		return slog.LevelInfo
	}
}

func attrs(fields []Fields) []any {
	all := mergeFields(nil, fields...)
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]any, 0, len(keys))
	for _, k := range keys {
		out = append(out, slog.Any(k, all[k]))
	}
	return out
}

func (s *SlogLogger) emit(level slog.Level, err error, msg string, fields []Fields) {
	if level < s.level.Level() {
		return
	}
	args := attrs(fields)
	if err != nil {
		args = append(args, slog.String("error", err.Error()))
	}
	s.logger.Log(context.Background(), level, msg, args...)
}

func (s *SlogLogger) Debug(msg string, fields ...Fields) {
	s.emit(slog.LevelDebug, nil, msg, fields)
}

func (s *SlogLogger) Info(msg string, fields ...Fields) {
	s.emit(slog.LevelInfo, nil, msg, fields)
}

func (s *SlogLogger) Warn(msg string, fields ...Fields) {
	s.emit(slog.LevelWarn, nil, msg, fields)
}

func (s *SlogLogger) Error(err error, msg string, fields ...Fields) {
	s.emit(slog.LevelError, err, msg, fields)
}

func (s *SlogLogger) Fatal(err error, msg string, fields ...Fields) {
	s.emit(LevelFatal, err, msg, fields)
	exit(1)
}

func (s *SlogLogger) WithFields(fields Fields) Logger {
	return &SlogLogger{logger: s.logger.With(attrs([]Fields{fields})...), level: s.level}
}

func (s *SlogLogger) WithContext(ctx context.Context) Logger {
	if fields := FieldsFromContext(ctx); len(fields) > 0 {
		return s.WithFields(fields)
	}
	return s
}

func (s *SlogLogger) SetLevel(level Level) {
	s.level.Set(toSlogLevel(level))
}

// Slog returns the underlying *slog.Logger.
func (s *SlogLogger) Slog() *slog.Logger {
	return s.logger
}
