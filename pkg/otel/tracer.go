// Package otel 提供日志、追踪与指标的统一封装
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer 追踪器接口
type Tracer interface {
	// Start 以 ctx 为父上下文开始一个 Span，返回携带新 Span 的上下文
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// SpanFromContext 从上下文中获取当前 Span
	SpanFromContext(ctx context.Context) Span
}

// Span 追踪片段
type Span interface {
	End()
	SetAttributes(attrs ...attribute.KeyValue)
	AddEvent(name string, attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code StatusCode, description string)
	SpanContext() SpanContext
}

// SpanContext Span 标识
type SpanContext struct {
	TraceID string
	SpanID  string
}

// StatusCode Span 状态码
type StatusCode int

const (
	StatusUnset StatusCode = iota
	StatusOK
	StatusError
)

// SpanOption Span 配置选项
type SpanOption func(*SpanConfig)

// SpanConfig Span 配置
type SpanConfig struct {
	Kind       trace.SpanKind
	Attributes []attribute.KeyValue
}

// WithClientKind 标记为对外调用
func WithClientKind() SpanOption {
	return func(cfg *SpanConfig) {
		cfg.Kind = trace.SpanKindClient
	}
}

// WithAttributes 设置 Span 属性
func WithAttributes(attrs ...attribute.KeyValue) SpanOption {
	return func(cfg *SpanConfig) {
		cfg.Attributes = append(cfg.Attributes, attrs...)
	}
}

// OTelTracer OpenTelemetry 追踪器
type OTelTracer struct {
	tracer trace.Tracer
}

// NewTracer 创建 OpenTelemetry 追踪器
func NewTracer(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

// Start 开始一个新的 Span
func (t *OTelTracer) Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	cfg := &SpanConfig{Kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(cfg.Kind),
		trace.WithAttributes(cfg.Attributes...),
	)
	return ctx, &OTelSpan{span: span}
}

// SpanFromContext 从上下文中获取当前 Span
func (t *OTelTracer) SpanFromContext(ctx context.Context) Span {
	return &OTelSpan{span: trace.SpanFromContext(ctx)}
}

// OTelSpan OpenTelemetry Span
type OTelSpan struct {
	span trace.Span
}

func (s *OTelSpan) End() { s.span.End() }

func (s *OTelSpan) SetAttributes(attrs ...attribute.KeyValue) { s.span.SetAttributes(attrs...) }

func (s *OTelSpan) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

func (s *OTelSpan) RecordError(err error) { s.span.RecordError(err) }

// SetStatus 设置状态
func (s *OTelSpan) SetStatus(code StatusCode, description string) {
	switch code {
	case StatusOK:
		s.span.SetStatus(codes.Ok, description)
	case StatusError:
		s.span.SetStatus(codes.Error, description)
	default:
		s.span.SetStatus(codes.Unset, description)
	}
}

// SpanContext 返回 Span 标识，无效 Span 返回空值
func (s *OTelSpan) SpanContext() SpanContext {
	sc := s.span.SpanContext()
	if !sc.IsValid() {
		return SpanContext{}
	}
	return SpanContext{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NoopTracer 空实现追踪器
type NoopTracer struct{}

// NewNoopTracer 创建空实现追踪器
func NewNoopTracer() *NoopTracer {
	return &NoopTracer{}
}

func (t *NoopTracer) Start(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

func (t *NoopTracer) SpanFromContext(context.Context) Span { return &NoopSpan{} }

// NoopSpan 空实现 Span
type NoopSpan struct{}

func (s *NoopSpan) End()                                   {}
func (s *NoopSpan) SetAttributes(...attribute.KeyValue)    {}
func (s *NoopSpan) AddEvent(string, ...attribute.KeyValue) {}
func (s *NoopSpan) RecordError(error)                      {}
func (s *NoopSpan) SetStatus(StatusCode, string)           {}
func (s *NoopSpan) SpanContext() SpanContext               { return SpanContext{} }

// compile-time interface check
var (
	_ Tracer = (*OTelTracer)(nil)
	_ Tracer = (*NoopTracer)(nil)
	_ Span   = (*OTelSpan)(nil)
	_ Span   = (*NoopSpan)(nil)
)
