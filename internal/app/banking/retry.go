package banking

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// conflictBackoff returns a full-jitter delay in [0, min(base*2^attempt, max)).
func conflictBackoff(cfg Config, attempt int) time.Duration {
	if cfg.RetryBaseDelay <= 0 {
		return 0
	}
	if attempt > 20 {
		attempt = 20
	}
	delay := cfg.RetryBaseDelay << attempt
	if delay <= 0 || delay/cfg.RetryBaseDelay != 1<<attempt {
		delay = math.MaxInt64
	}
	if cfg.RetryMaxDelay > 0 && delay > cfg.RetryMaxDelay {
		delay = cfg.RetryMaxDelay
	}
	return time.Duration(rand.Int63n(int64(delay)))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
