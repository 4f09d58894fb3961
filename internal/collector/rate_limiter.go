package collector

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter spaces outgoing helpdesk API calls
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// fixedRateLimiter enforces a minimum interval between calls. The first
// call passes immediately.
type fixedRateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

// NewRateLimiter creates a limiter allowing one call per interval. A
// non-positive interval disables spacing.
func NewRateLimiter(interval time.Duration) RateLimiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &fixedRateLimiter{
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		sleep:   sleepWithContext,
	}
}

// Wait blocks until the next call is allowed
func (r *fixedRateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := r.now()
	res := r.limiter.ReserveN(now, 1)
	delay := res.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	rateLimitWaits.WithLabelValues("throttle").Inc()
	if err := r.sleep(ctx, delay); err != nil {
		res.CancelAt(r.now())
		return err
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
