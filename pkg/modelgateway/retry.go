package modelgateway

import (
	"context"
	"math/rand"
	"time"
)

// backoffWithFullJitter 实现带满抖动的指数退避，重试次数从 0 开始计数。
// 与 AWS 建议的 full-jitter 算法一致：sleep = random(0, min(cap, base*2^attempt))。
func backoffWithFullJitter(attempt, baseMs, capMs int) time.Duration {
	if baseMs <= 0 {
		baseMs = 200
	}
	if capMs <= 0 {
		capMs = 5000
	}
	backoff := baseMs << attempt // 2^attempt * base
	if backoff <= 0 || backoff > capMs {
		backoff = capMs
	}
	jittered := rand.Intn(backoff + 1)
	return time.Duration(jittered) * time.Millisecond
}

// sleepOrDone 在 ctx 被取消前休眠给定时长；若 ctx 先结束则返回其错误。
func sleepOrDone(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
