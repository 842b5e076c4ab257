package fetchers

import (
	"context"
	"fmt"
	"time"

	"github.com/chubarkul/kaspi-parser/internal/utils"
)

// RetryPolicy 限流退避重试策略
// 仅对429响应生效: 指数退避,首次延迟BaseDelay,封顶MaxDelay。
type RetryPolicy struct {
	Attempts  int           // 最大尝试次数(含首次)
	BaseDelay time.Duration // 首次重试延迟
	MaxDelay  time.Duration // 延迟上限

	// sleep 可注入的等待实现,测试时替换以避免真实等待
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy 创建重试策略
func NewRetryPolicy(attempts int, baseDelay, maxDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		Attempts:  attempts,
		BaseDelay: baseDelay,
		MaxDelay:  maxDelay,
		sleep:     sleepWithContext,
	}
}

// delayFor 计算第attempt次重试前的延迟(attempt从1开始)
func (p *RetryPolicy) delayFor(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do 执行fn,429错误按策略退避重试
// 不可重试的错误立即返回;重试耗尽后返回包装了ErrRateLimited的最后一次错误。
func (p *RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !IsRetryable(lastErr) {
			return lastErr
		}

		if attempt == p.Attempts {
			break
		}

		delay := p.delayFor(attempt)
		utils.Warnf("触发限流(429),%v 后重试 (%d/%d)", delay, attempt, p.Attempts-1)

		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w (共尝试%d次): %w", ErrRateLimited, p.Attempts, lastErr)
}

// sleepWithContext 可被context取消的等待
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
