package llm

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/easyops/ragcontext-go/pkg/otel"
)

// TracedProvider 为 Provider 增加追踪与指标
type TracedProvider struct {
	provider Provider
	tracer   otel.Tracer
	metrics  otel.Metrics
}

// NewTracedProvider 包装 Provider；tracer 或 metrics 为 nil 时使用全局实例
func NewTracedProvider(p Provider, tracer otel.Tracer, metrics otel.Metrics) *TracedProvider {
	if tracer == nil {
		tracer = otel.GetTracer()
	}
	if metrics == nil {
		metrics = otel.GetMetrics()
	}
	return &TracedProvider{provider: p, tracer: tracer, metrics: metrics}
}

// Generate 生成回复并记录 span
func (p *TracedProvider) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, span := p.tracer.Start(ctx, "llm.generate",
		otel.WithClientKind(),
		otel.WithAttributes(otel.LLMProvider(p.provider.Name()), otel.LLMModel(p.provider.Model())),
	)
	defer span.End()

	start := time.Now()
	resp, err := p.provider.Generate(ctx, req)

	attrs := []otel.Attr{otel.NewAttr(otel.AttrLLMProvider, p.provider.Name())}
	p.metrics.Counter(otel.MetricLLMRequests).Add(ctx, 1, attrs...)
	p.metrics.Histogram(otel.MetricLLMDuration).Record(ctx, float64(time.Since(start).Milliseconds()), attrs...)

	if err != nil {
		p.metrics.Counter(otel.MetricLLMErrors).Add(ctx, 1, attrs...)
		span.RecordError(err)
		span.SetStatus(otel.StatusError, err.Error())
		return resp, err
	}

	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", resp.TokenUsage.PromptTokens),
		attribute.Int("llm.completion_tokens", resp.TokenUsage.CompletionTokens),
	)
	span.SetStatus(otel.StatusOK, "")
	return resp, nil
}

// Embed 生成嵌入向量并记录 span
func (p *TracedProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, span := p.tracer.Start(ctx, "llm.embed",
		otel.WithClientKind(),
		otel.WithAttributes(otel.LLMProvider(p.provider.Name()), attribute.Int("llm.inputs", len(texts))),
	)
	defer span.End()

	vecs, err := p.provider.Embed(ctx, texts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otel.StatusError, err.Error())
	}
	return vecs, err
}

func (p *TracedProvider) Name() string  { return p.provider.Name() }
func (p *TracedProvider) Model() string { return p.provider.Model() }
func (p *TracedProvider) Close() error  { return p.provider.Close() }

// compile-time interface check
var _ Provider = (*TracedProvider)(nil)
