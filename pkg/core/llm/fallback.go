package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// FallbackProvider 按顺序尝试多个提供商
//
// 失败的提供商在 checkInterval 内被跳过；全部不可用时仍按原顺序全部尝试。
type FallbackProvider struct {
	providers     []Provider
	checkInterval time.Duration
	failedAt      map[int]time.Time
	mu            sync.Mutex
	now           func() time.Time
}

// FallbackOption 备用提供商选项
type FallbackOption func(*FallbackProvider)

// WithFallbackCheckInterval 设置失败提供商的冷却时间
func WithFallbackCheckInterval(interval time.Duration) FallbackOption {
	return func(f *FallbackProvider) {
		f.checkInterval = interval
	}
}

// NewFallbackProvider 创建带备用的提供商
func NewFallbackProvider(primary Provider, fallbacks []Provider, opts ...FallbackOption) *FallbackProvider {
	f := &FallbackProvider{
		providers:     append([]Provider{primary}, fallbacks...),
		checkInterval: 30 * time.Second,
		failedAt:      make(map[int]time.Time),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Generate 生成回复
func (f *FallbackProvider) Generate(ctx context.Context, req Request) (Response, error) {
	var lastErr error
	for _, i := range f.order() {
		p := f.providers[i]
		resp, err := p.Generate(ctx, req)
		if err == nil {
			f.mark(i, nil)
			return resp, nil
		}
		lastErr = err
		f.mark(i, err)
		if ctx.Err() != nil {
			break
		}
		slog.Warn("provider failed, trying fallback", "provider", p.Name(), "model", p.Model(), "error", err)
	}
	return Response{}, fmt.Errorf("all providers failed, last error: %w", lastErr)
}

// Embed 生成嵌入向量
func (f *FallbackProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for _, i := range f.order() {
		p := f.providers[i]
		vecs, err := p.Embed(ctx, texts)
		if err == nil {
			f.mark(i, nil)
			return vecs, nil
		}
		lastErr = err
		f.mark(i, err)
		if ctx.Err() != nil {
			break
		}
		slog.Warn("embed provider failed, trying fallback", "provider", p.Name(), "error", err)
	}
	return nil, fmt.Errorf("all providers failed for embedding, last error: %w", lastErr)
}

func (f *FallbackProvider) Name() string  { return fmt.Sprintf("fallback(%s)", f.providers[0].Name()) }
func (f *FallbackProvider) Model() string { return f.providers[0].Model() }

// Close 关闭所有提供商，返回第一个错误
func (f *FallbackProvider) Close() error {
	var firstErr error
	for _, p := range f.providers {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// order 返回本次尝试顺序：健康的在前，冷却中的不参与，全部冷却时全部参与
func (f *FallbackProvider) order() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	out := make([]int, 0, len(f.providers))
	for i := range f.providers {
		at, failed := f.failedAt[i]
		if !failed || now.Sub(at) > f.checkInterval {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		for i := range f.providers {
			out = append(out, i)
		}
	}
	return out
}

func (f *FallbackProvider) mark(i int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failedAt, i)
		return
	}
	f.failedAt[i] = f.now()
}

// compile-time interface check
var _ Provider = (*FallbackProvider)(nil)
