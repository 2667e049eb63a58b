package usecase

import (
	"context"
	"time"

	"weighbridge/internal/domain"
)

// RetryConfig bounds the caller-driven retry loop around transient
// navigation-pending failures. The core never retries anything else;
// retrying final errors would just hammer the source.
type RetryConfig struct {
	// Delay between attempts.
	Delay time.Duration
	// Budget caps the total time spent waiting for a resumed delivery.
	Budget time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Delay <= 0 {
		c.Delay = 500 * time.Millisecond
	}
	if c.Budget <= 0 {
		// A pending navigation is useless once its ticket expires.
		c.Budget = domain.TicketTTL
	}
	return c
}

// retryNavigation runs fn, retrying while it reports the transient
// navigation-pending failure. Any other outcome is final.
func retryNavigation[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()
	deadline := time.Now().Add(cfg.Budget)

	var (
		v   T
		err error
	)
	for {
		v, err = fn()
		if err == nil || !domain.IsRetryableError(err) {
			return v, err
		}
		if time.Now().Add(cfg.Delay).After(deadline) {
			return v, err
		}
		select {
		case <-ctx.Done():
			return v, ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}
}
