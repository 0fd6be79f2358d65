package otel

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger 日志接口
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	// WithContext 返回附带 trace_id/span_id 的 Logger
	WithContext(ctx context.Context) Logger
	// WithFields 返回带额外字段的 Logger
	WithFields(fields map[string]any) Logger
}

// NewLogger 按配置创建基于 slog 的 Logger，输出到 stderr
func NewLogger(cfg LoggingConfig) *SlogLogger {
	return NewLoggerTo(os.Stderr, cfg)
}

// NewLoggerTo 按配置创建输出到 w 的 Logger
func NewLoggerTo(w io.Writer, cfg LoggingConfig) *SlogLogger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return NewSlogLogger(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// SlogLogger slog 适配器
type SlogLogger struct {
	logger *slog.Logger
	attrs  []any
}

// NewSlogLogger 创建 slog 适配器
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, l.with(args)...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, l.with(args)...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, l.with(args)...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, l.with(args)...) }

func (l *SlogLogger) with(args []any) []any {
	if len(l.attrs) == 0 {
		return args
	}
	out := make([]any, 0, len(l.attrs)+len(args))
	out = append(out, l.attrs...)
	return append(out, args...)
}

// WithContext 返回带 Trace 信息的 Logger
func (l *SlogLogger) WithContext(ctx context.Context) Logger {
	if ctx == nil {
		return l
	}
	sc := GetTracer().SpanFromContext(ctx).SpanContext()
	if sc.TraceID == "" {
		return l
	}
	return l.WithFields(map[string]any{
		"trace_id": sc.TraceID,
		"span_id":  sc.SpanID,
	})
}

// WithFields 返回带额外字段的 Logger
func (l *SlogLogger) WithFields(fields map[string]any) Logger {
	attrs := make([]any, len(l.attrs), len(l.attrs)+len(fields)*2)
	copy(attrs, l.attrs)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	return &SlogLogger{logger: l.logger, attrs: attrs}
}

// NoopLogger 空实现日志
type NoopLogger struct{}

// NewNoopLogger 创建空实现日志
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(string, ...any)              {}
func (l *NoopLogger) Info(string, ...any)               {}
func (l *NoopLogger) Warn(string, ...any)               {}
func (l *NoopLogger) Error(string, ...any)              {}
func (l *NoopLogger) WithContext(context.Context) Logger { return l }
func (l *NoopLogger) WithFields(map[string]any) Logger  { return l }

// compile-time interface check
var (
	_ Logger = (*SlogLogger)(nil)
	_ Logger = (*NoopLogger)(nil)
)
