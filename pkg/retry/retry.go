// Package retry 提供有上限的固定间隔重试
package retry

import (
	"context"
	"time"
)

// Policy 描述一次重试策略
// Attempts 是总尝试次数 (包含第一次)，小于 1 按 1 处理，永远不会无限重试
type Policy struct {
	Attempts int
	Delay    time.Duration

	// Retriable 判断错误是否值得再试，nil 表示任何错误都重试
	Retriable func(error) bool

	// OnRetry 在每次等待之前调用，用于打日志
	OnRetry func(attempt int, err error)
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// Do 执行 fn 直到成功、遇到不可重试的错误或次数用完
// fn 收到的是当前第几次尝试 (从 1 开始)。返回实际尝试的次数和最后一个错误。
func Do(ctx context.Context, p Policy, fn func(attempt int) error) (int, error) {
	_, n, err := DoWithResult(ctx, p, func(attempt int) (struct{}, error) {
		return struct{}{}, fn(attempt)
	})
	return n, err
}

// DoWithResult 同 Do，带返回值
func DoWithResult[T any](ctx context.Context, p Policy, fn func(attempt int) (T, error)) (T, int, error) {
	var zero T
	limit := p.attempts()

	for attempt := 1; ; attempt++ {
		result, err := fn(attempt)
		if err == nil {
			return result, attempt, nil
		}

		// 终止条件: 次数用完 / 不可重试
		if attempt >= limit || (p.Retriable != nil && !p.Retriable(err)) {
			return zero, attempt, err
		}
		if ctx.Err() != nil {
			return zero, attempt, ctx.Err()
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, attempt, ctx.Err()
			case <-timer.C:
			}
		}
	}
}
