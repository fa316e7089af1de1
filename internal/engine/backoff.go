package engine

import "time"

// Backoff 返回第 attempt 次（从 0 开始）重试前的等待时长。
// 指数退避：base × 2^attempt，上限 30s。
func Backoff(base time.Duration, attempt int) time.Duration {
	const maxDelay = 30 * time.Second
	if base <= 0 {
		base = time.Second
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= maxDelay {
			return maxDelay
		}
	}
	return d
}
