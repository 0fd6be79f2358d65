package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/easyops/ragcontext-go/pkg/core/errors"
)

// maxBackoff 单次退避上限
const maxBackoff = 30 * time.Second

// retry 执行带指数退避的重试，仅对可重试错误生效
func retry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", errors.ErrContextCanceled, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.IsRetryable(err) || attempt == maxRetries {
			break
		}

		timer := time.NewTimer(backoff(attempt, baseDelay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", errors.ErrContextCanceled, ctx.Err())
		case <-timer.C:
		}
	}

	return lastErr
}

// backoff 计算退避时间: baseDelay * 2^attempt，附加 10% 抖动
func backoff(attempt int, baseDelay time.Duration) time.Duration {
	delay := baseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	delay += delay / 10
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}
