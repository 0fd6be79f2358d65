// Package timeout 为单次调用施加截止时间，超时后调用回退逻辑。
package timeout

import (
	"context"
	"errors"
	"fmt"
	"time"

	agenterrors "github.com/easyops/ragcontext-go/pkg/core/errors"
	"github.com/easyops/ragcontext-go/pkg/otel"
)

// ErrInvalidTimeout 超时时间必须为正
var ErrInvalidTimeout = fmt.Errorf("%w: timeout must be positive", agenterrors.ErrValidation)

// Executor 超时执行器
type Executor struct {
	logger    otel.Logger
	onTimeout func()
}

// Option 执行器选项
type Option func(*Executor)

// WithLogger 设置日志器
func WithLogger(l otel.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTimeoutHook 每次超时触发一次，通常用于计数
func WithTimeoutHook(fn func()) Option {
	return func(e *Executor) {
		e.onTimeout = fn
	}
}

// NewExecutor 创建执行器
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{logger: otel.GetLogger()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type result[T any] struct {
	val T
	err error
}

// Run 使用默认执行器执行
func Run[T any](ctx context.Context, work func(ctx context.Context) (T, error), onTimeout func() (T, error), d time.Duration) (T, error) {
	return RunWith(ctx, NewExecutor(), work, onTimeout, d)
}

// RunWith 在 d 内等待 work 完成。
//
// work 按时完成时原样返回其结果，onTimeout 不会被调用；
// 否则记录警告并恰好调用一次 onTimeout。超时后 work 仍在后台运行，
// 其迟到的结果被丢弃。
func RunWith[T any](ctx context.Context, e *Executor, work func(ctx context.Context) (T, error), onTimeout func() (T, error), d time.Duration) (T, error) {
	var zero T
	if d <= 0 {
		return zero, ErrInvalidTimeout
	}
	if work == nil || onTimeout == nil {
		return zero, agenterrors.Validationf("work and onTimeout are required")
	}
	if e == nil {
		e = NewExecutor()
	}

	// 缓冲为 1，放弃等待后 worker 的发送不会阻塞
	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: fmt.Errorf("work panicked: %v", r)}
			}
		}()
		v, err := work(ctx)
		done <- result[T]{val: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case r := <-done:
		return r.val, r.err
	case <-timer.C:
	case <-ctx.Done():
		// 调用方取消不是超时
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, ctx.Err()
		}
	}

	e.logger.WithContext(ctx).Warn("call timed out, using fallback", "timeout", d)
	if e.onTimeout != nil {
		e.onTimeout()
	}
	return onTimeout()
}
