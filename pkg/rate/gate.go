// Package rate 限制对外部数据源的并发数与调用速率。
package rate

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/easyops/ragcontext-go/pkg/core/config"
	"github.com/easyops/ragcontext-go/pkg/otel"
)

// Gate 外部调用闸门（并发安全）。
//
// 放行需同时满足：持有一个并发槽位，且距上一次放行至少 1/PerSecond 秒。
// Acquire 只会延迟、不会拒绝；唯一的失败来源是 ctx 取消。
type Gate struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	metrics otel.Metrics

	inflight atomic.Int64
	admitted atomic.Int64
}

// Option 闸门选项。
type Option func(*Gate)

// WithMetrics 记录等待时长与占用槽位。
func WithMetrics(m otel.Metrics) Option {
	return func(g *Gate) {
		if m != nil {
			g.metrics = m
		}
	}
}

// DefaultConfig 默认限流配置
func DefaultConfig() config.RateConfig {
	return config.RateConfig{}.WithDefaults()
}

// NewGate 按配置构造闸门；零值字段取默认（5 并发，0.25 次/秒）。
func NewGate(cfg config.RateConfig, opts ...Option) *Gate {
	cfg = cfg.WithDefaults()
	g := &Gate{
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		limiter: rate.NewLimiter(rate.Limit(cfg.PerSecond), 1),
		metrics: otel.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Acquire 阻塞直到获得槽位并满足速率间隔。
func (g *Gate) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := g.limiter.Wait(ctx); err != nil {
		g.sem.Release(1)
		return err
	}

	g.admitted.Add(1)
	n := g.inflight.Add(1)
	g.metrics.Histogram(otel.MetricRateWaitDuration).Record(ctx, float64(time.Since(start).Milliseconds()))
	g.metrics.Gauge(otel.MetricRateInFlight).Set(ctx, float64(n))
	return nil
}

// Release 归还一个槽位；必须与成功的 Acquire 配对。
func (g *Gate) Release() {
	n := g.inflight.Add(-1)
	g.sem.Release(1)
	g.metrics.Gauge(otel.MetricRateInFlight).Set(context.Background(), float64(n))
}

// Do 在闸门保护下执行 fn，无论 fn 成功、失败或 panic 都会归还槽位。
func (g *Gate) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	defer g.Release()
	return fn(ctx)
}

// InFlight 当前占用的槽位数。
func (g *Gate) InFlight() int { return int(g.inflight.Load()) }

// Admitted 累计放行次数。
func (g *Gate) Admitted() int64 { return g.admitted.Load() }
