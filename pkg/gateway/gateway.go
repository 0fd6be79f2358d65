// Package gateway 以缓存、超时与回退保护模型调用。
//
// 调用流程：缓存查询 → 带截止时间的模型调用（超时则回退）→ 写回缓存。
// 超时后被放弃的调用可能在后台继续运行，其结果被丢弃且不会写入缓存。
package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/easyops/ragcontext-go/pkg/cache"
	"github.com/easyops/ragcontext-go/pkg/core/config"
	"github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/core/llm"
	"github.com/easyops/ragcontext-go/pkg/otel"
	"github.com/easyops/ragcontext-go/pkg/rag"
	"github.com/easyops/ragcontext-go/pkg/timeout"
)

// EnvModel env 中覆盖模型名的键
const EnvModel = "model"

// DefaultTimeout 默认单次调用超时
const DefaultTimeout = 60 * time.Second

// Gateway 模型调用网关
type Gateway struct {
	provider llm.Provider
	cache    cache.Cache
	executor *timeout.Executor
	timeout  time.Duration
	fallback FallbackFunc
	format   []AnswerFormatter

	logger  otel.Logger
	tracer  otel.Tracer
	metrics otel.Metrics
}

// Option 网关选项
type Option func(*Gateway)

// WithTimeout 设置单次调用超时
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithFallback 设置超时回退
func WithFallback(f FallbackFunc) Option {
	return func(g *Gateway) {
		if f != nil {
			g.fallback = f
		}
	}
}

// WithFormatters 替换回答格式化器，传空表示不做后处理
func WithFormatters(fs ...AnswerFormatter) Option {
	return func(g *Gateway) {
		g.format = fs
	}
}

// WithExecutor 替换超时执行器
func WithExecutor(e *timeout.Executor) Option {
	return func(g *Gateway) {
		if e != nil {
			g.executor = e
		}
	}
}

// WithLogger 设置日志器
func WithLogger(l otel.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithTracer 设置追踪器
func WithTracer(t otel.Tracer) Option {
	return func(g *Gateway) {
		if t != nil {
			g.tracer = t
		}
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m otel.Metrics) Option {
	return func(g *Gateway) {
		if m != nil {
			g.metrics = m
		}
	}
}

// New 创建网关
func New(provider llm.Provider, c cache.Cache, opts ...Option) *Gateway {
	g := &Gateway{
		provider: provider,
		cache:    c,
		timeout:  DefaultTimeout,
		fallback: StaticFallback(config.DefaultFallbackMessage),
		format:   DefaultFormatters(),
		logger:   otel.GetLogger(),
		tracer:   otel.GetTracer(),
		metrics:  otel.GetMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.executor == nil {
		g.executor = timeout.NewExecutor(
			timeout.WithLogger(g.logger),
			timeout.WithTimeoutHook(func() {
				g.metrics.Counter(otel.MetricLLMTimeouts).Add(context.Background(), 1)
			}),
		)
	}
	return g
}

// NewFromConfig 按配置创建后端、回退与网关。
//
// 配置了 Fallback 时超时回退到备用模型，备用模型也失败时返回静态消息。
func NewFromConfig(cfg config.LLMConfig, c cache.Cache, opts ...Option) (*Gateway, error) {
	cfg = cfg.WithDefaults()
	provider, err := llm.New(cfg)
	if err != nil {
		return nil, err
	}

	fallback := StaticFallback(cfg.FallbackMessage)
	if cfg.Fallback != nil {
		alt, err := llm.New(*cfg.Fallback)
		if err != nil {
			_ = provider.Close()
			return nil, fmt.Errorf("failed to create fallback provider: %w", err)
		}
		fallback = ProviderFallback(llm.NewTracedProvider(alt, nil, nil), cfg.FallbackMessage)
	}

	base := []Option{WithTimeout(cfg.Timeout), WithFallback(fallback)}
	return New(llm.NewTracedProvider(provider, nil, nil), c, append(base, opts...)...), nil
}

// Close 关闭后端
func (g *Gateway) Close() error {
	return g.provider.Close()
}

type callResult struct {
	content  string
	fallback bool
}

// CallWithCache 为 doc 生成响应。
//
// 命中缓存时不调用模型；未命中时在超时内调用模型，超时使用回退。
// 实时响应按模型名经格式化器处理（去掉推理块）后才写入缓存，空响应不缓存。
// 非超时的模型错误返回给调用方。
func (g *Gateway) CallWithCache(ctx context.Context, doc *rag.MultiDocumentContext, env map[string]string, toolName string) (*rag.MultiDocumentContext, error) {
	if doc == nil {
		return nil, errors.Validationf("context document is required")
	}
	if toolName == "" {
		return nil, errors.Validationf("tool name is required")
	}

	model := g.provider.Model()
	if m := env[EnvModel]; m != "" {
		model = m
	}
	userPrompt := PromptDocument(doc)
	key := CacheKey(doc.Instructions+"\n"+userPrompt, model, env, toolName)
	doc.SetCacheKey(key)

	ctx, span := g.tracer.Start(ctx, "gateway.call", otel.WithAttributes(
		otel.ToolName(toolName),
		otel.LLMModel(model),
	))
	defer span.End()
	logger := g.logger.WithContext(ctx)

	if g.cache != nil {
		cached, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("cache lookup failed", "key", key, "error", err)
		}
		if ok {
			g.metrics.Counter(otel.MetricCacheHits).Add(ctx, 1)
			span.SetAttributes(otel.CacheHit(true))
			if err := doc.SetResponse(cached); err != nil {
				return nil, err
			}
			doc.WithDebug("cache=hit key=" + key)
			return doc, nil
		}
		g.metrics.Counter(otel.MetricCacheMisses).Add(ctx, 1)
	}
	span.SetAttributes(otel.CacheHit(false))

	var reqOpts []llm.RequestOption
	if m := env[EnvModel]; m != "" {
		reqOpts = append(reqOpts, llm.WithRequestModel(m))
	}
	req := llm.NewPromptRequest(doc.Instructions, userPrompt, reqOpts...)

	res, err := timeout.RunWith(ctx, g.executor,
		func(ctx context.Context) (callResult, error) {
			resp, err := g.provider.Generate(ctx, req)
			if err != nil {
				return callResult{}, err
			}
			return callResult{content: FormatAnswer(g.format, model, resp.Content)}, nil
		},
		func() (callResult, error) {
			content, err := g.fallback(ctx, req)
			return callResult{content: content, fallback: true}, err
		},
		g.timeout,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otel.StatusError, err.Error())
		return nil, fmt.Errorf("model call for %s: %w", toolName, err)
	}

	origin := "live"
	if res.fallback {
		origin = "fallback"
		g.metrics.Counter(otel.MetricLLMFallbacks).Add(ctx, 1)
	} else if res.content != "" && g.cache != nil {
		if err := g.cache.Put(ctx, key, res.content); err != nil {
			logger.Warn("cache store failed", "key", key, "error", err)
		}
	}
	span.SetAttributes(attribute.String(otel.AttrLLMOrigin, origin))

	if err := doc.SetResponse(res.content); err != nil {
		return nil, err
	}
	doc.WithDebug(fmt.Sprintf("cache=miss origin=%s key=%s", origin, key))
	logger.Debug("model call complete", "tool", toolName, "origin", origin, "chars", len(res.content))
	return doc, nil
}

// PromptDocument 拼接上下文与问题，作为发送给模型的用户消息
func PromptDocument(doc *rag.MultiDocumentContext) string {
	combined := doc.CombinedDocument()
	if combined == "" {
		return doc.Prompt
	}
	return combined + "\n\n" + doc.Prompt
}

// CacheKey 提示内容、模型、排序后的 env 与工具名的 SHA-256 十六进制摘要
func CacheKey(prompt, model string, env map[string]string, toolName string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}
	write(prompt)
	write(model)
	for _, k := range keys {
		write(k + "=" + env[k])
	}
	write(toolName)
	return hex.EncodeToString(h.Sum(nil))
}

// trimFence 去掉 ```json 代码围栏
func trimFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
