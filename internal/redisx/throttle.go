package redisx

import (
	"context"

	"golang.org/x/time/rate"
)

// throttled paces per-node commands. Discovery is not throttled.
type throttled struct {
	Client
	limiter *rate.Limiter
}

// Throttle wraps c so that Do and Scan start at most qps times per second.
// qps <= 0 returns c unchanged.
func Throttle(c Client, qps float64) Client {
	if qps <= 0 {
		return c
	}
	return &throttled{
		Client:  c,
		limiter: rate.NewLimiter(rate.Limit(qps), 1),
	}
}

func (t *throttled) Do(ctx context.Context, node Endpoint, args ...string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return t.Client.Do(ctx, node, args...)
}

func (t *throttled) Scan(ctx context.Context, node Endpoint, fn func(key string) error) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	return t.Client.Scan(ctx, node, fn)
}
