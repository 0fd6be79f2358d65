package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/core/message"
	"github.com/easyops/ragcontext-go/pkg/keyword"
	"github.com/easyops/ragcontext-go/pkg/otel"
	"github.com/easyops/ragcontext-go/pkg/rag"
	"github.com/easyops/ragcontext-go/pkg/rate"
	"github.com/easyops/ragcontext-go/pkg/trim"
)

// defaultPromptHints 从问题中抽取的提示短语数量
const defaultPromptHints = 5

// Descriptor 一次工具调用
type Descriptor struct {
	Name    string
	Fetcher Fetcher
	Params  map[string]string
	// Weight 预算权重，非正值按 1 计
	Weight float64
	// Hints 额外的相关性提示词
	Hints []string
}

// Request 编排请求
type Request struct {
	Prompt       string
	Instructions string
	Tools        []Descriptor
}

// Orchestrator 工具编排器
//
// 每个工具一个 goroutine，经同一个 rate.Gate 获取数据（远程嵌入同样经过该闸门），裁剪到各自的预算份额后
// 按调用顺序写入多文档上下文。单个工具失败不影响其他工具。
type Orchestrator struct {
	gate        *rate.Gate
	ranker      *trim.Ranker
	budget      trim.Budget
	extractor   keyword.Extractor
	promptHints int
	counter     trim.TokenCounter

	logger  otel.Logger
	tracer  otel.Tracer
	metrics otel.Metrics
}

// Option 编排器选项
type Option func(*Orchestrator)

// WithRanker 设置片段排序器
func WithRanker(r *trim.Ranker) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.ranker = r
		}
	}
}

// WithBudget 设置字符预算
func WithBudget(b trim.Budget) Option {
	return func(o *Orchestrator) { o.budget = b }
}

// WithExtractor 设置问题关键词抽取器
func WithExtractor(e keyword.Extractor) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.extractor = e
		}
	}
}

// WithPromptHints 设置从问题中抽取的提示短语数量
func WithPromptHints(n int) Option {
	return func(o *Orchestrator) { o.promptHints = n }
}

// WithTokenCounter 设置调试信息使用的 Token 计数器
func WithTokenCounter(c trim.TokenCounter) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.counter = c
		}
	}
}

// WithLogger 设置日志器
func WithLogger(l otel.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTracer 设置追踪器
func WithTracer(t otel.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m otel.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// NewOrchestrator 创建编排器
func NewOrchestrator(gate *rate.Gate, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gate:        gate,
		ranker:      trim.NewRanker(),
		budget:      trim.DefaultBudget(),
		extractor:   keyword.NewRAKE(),
		promptHints: defaultPromptHints,
		logger:      otel.GetLogger(),
		tracer:      otel.GetTracer(),
		metrics:     otel.GetMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.gate == nil {
		o.gate = rate.NewGate(rate.DefaultConfig())
	}
	// 远程嵌入与获取共用同一个闸门
	if o.ranker.Admit == nil {
		o.ranker = o.ranker.WithAdmit(o.gate.Do)
	}
	if o.counter == nil {
		o.counter = trim.NewEstimatedCounter(o.budget.CharsPerToken)
	}
	return o
}

type outcome struct {
	ctx      rag.IndividualContext
	err      error
	duration time.Duration
}

// Run 执行全部工具并组装上下文。
//
// 只有请求本身无效时返回错误；工具失败以失败条目的形式保留在上下文中。
func (o *Orchestrator) Run(ctx context.Context, req Request) (*rag.MultiDocumentContext, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx, span := o.tracer.Start(ctx, "orchestrator.run", otel.WithAttributes(
		otel.RunID(runID),
		attribute.Int(otel.AttrContextDocs, len(req.Tools)),
	))
	defer span.End()
	logger := o.logger.WithContext(ctx).WithFields(map[string]any{"run_id": runID})

	promptHints := keyword.Phrases(o.extractor.Extract(req.Prompt), o.promptHints)

	weights := make([]float64, len(req.Tools))
	for i, d := range req.Tools {
		weights[i] = d.Weight
	}
	shares := o.budget.Share(weights)

	results := make([]outcome, len(req.Tools))
	var wg sync.WaitGroup
	for i, d := range req.Tools {
		wg.Add(1)
		go func(i int, d Descriptor) {
			defer wg.Done()
			hints := append(append([]string{}, d.Hints...), promptHints...)
			results[i] = o.fetch(ctx, d, hints, req.Prompt, shares[i])
		}(i, d)
	}
	wg.Wait()

	o.enforceBudget(results)

	doc := rag.NewMultiDocumentContext(req.Prompt, req.Instructions)
	doc.WithDebug("run=" + runID)
	for i, r := range results {
		name := req.Tools[i].Name
		if r.err != nil {
			logger.Warn("tool fetch failed", "tool", name, "error", r.err)
			doc.WithDebug(fmt.Sprintf("tool=%s status=failed duration=%s error=%q", name, r.duration, r.err.Error()))
		} else {
			doc.WithDebug(fmt.Sprintf("tool=%s status=ok chars=%d original=%d duration=%s",
				name, len(r.ctx.Text), r.ctx.Original, r.duration))
		}
		if err := doc.Append(r.ctx); err != nil {
			logger.Warn("duplicate context dropped", "tool", name, "id", r.ctx.ID, "error", err)
		}
	}

	total := doc.TotalLength()
	tokens := o.counter.CountMessages([]message.Message{
		message.NewSystemMessage(req.Instructions),
		message.NewUserMessage(doc.CombinedDocument() + "\n\n" + req.Prompt),
	})
	doc.WithDebug(fmt.Sprintf("context chars=%d budget=%d tokens=%d", total, o.budget.Chars(), tokens))

	o.metrics.Histogram(otel.MetricContextChars).Record(ctx, float64(total))
	span.SetAttributes(
		attribute.Int(otel.AttrContextChars, total),
		attribute.Int(otel.AttrContextBudget, o.budget.Chars()),
	)
	logger.Debug("context assembled", "tools", len(req.Tools), "chars", total, "tokens", tokens)
	return doc, nil
}

func validateRequest(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return errors.Validationf("prompt is required")
	}
	if len(req.Tools) == 0 {
		return errors.Validationf("at least one tool is required")
	}
	for i, d := range req.Tools {
		if d.Name == "" || d.Fetcher == nil {
			return errors.Validationf("tool %d: name and fetcher are required", i)
		}
	}
	return nil
}

// fetch 在闸门保护下获取一个工具的文档并裁剪到 limit
func (o *Orchestrator) fetch(ctx context.Context, d Descriptor, hints []string, prompt string, limit int) outcome {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "tool.fetch", otel.WithClientKind(), otel.WithAttributes(otel.ToolName(d.Name)))
	defer span.End()

	attrs := otel.NewAttr(otel.AttrToolName, d.Name)
	o.metrics.Counter(otel.MetricToolFetches).Add(ctx, 1, attrs)

	var doc rag.Document
	err := o.gate.Do(ctx, func(ctx context.Context) error {
		var ferr error
		doc, ferr = safeFetch(ctx, d)
		return ferr
	})
	if err == nil {
		if doc.Source == "" {
			doc.Source = d.Name
		}
		if doc.FetchedAt.IsZero() {
			doc.FetchedAt = time.Now()
		}
		err = doc.Validate()
	}

	elapsed := time.Since(start)
	o.metrics.Histogram(otel.MetricToolFetchDuration).Record(ctx, float64(elapsed.Milliseconds()), attrs)

	if err != nil {
		err = errors.Upstream(d.Name, err)
		o.metrics.Counter(otel.MetricToolErrors).Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(otel.StatusError, err.Error())
		span.SetAttributes(attribute.Bool(otel.AttrToolOK, false))
		return outcome{ctx: rag.FailedContext(d.Name, err), err: err, duration: elapsed}
	}

	text, matches := trim.FitDocument(ctx, o.ranker, doc.Text, hints, prompt, limit)
	span.SetAttributes(attribute.Bool(otel.AttrToolOK, true), attribute.Int(otel.AttrToolChars, len(text)))
	return outcome{ctx: rag.NewIndividualContext(doc, text, matches), duration: elapsed}
}

// safeFetch 调用 Fetcher，panic 转为错误
func safeFetch(ctx context.Context, d Descriptor) (doc rag.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()
	return d.Fetcher.Fetch(ctx, d.Params)
}

// enforceBudget 合并后的文本超出总预算时按顺序取前缀，放不下的条目保留空文本
func (o *Orchestrator) enforceBudget(results []outcome) {
	limit := o.budget.Chars()
	texts := make([]string, len(results))
	total := 0
	for i, r := range results {
		texts[i] = r.ctx.Text
		total += len(texts[i])
	}
	if total <= limit {
		return
	}

	kept := len(trim.Trim(texts, limit))
	used := 0
	for _, t := range texts[:kept] {
		used += len(t)
	}
	for i := kept; i < len(results); i++ {
		if i == kept {
			results[i].ctx.Text = trim.Cut(results[i].ctx.Text, limit-used)
			continue
		}
		results[i].ctx.Text = ""
	}
}
