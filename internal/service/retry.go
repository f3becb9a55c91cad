package service

import (
	"context"
	"errors"
	"math"
	"time"

	"figmist-store/internal/util"
)

// Retrier runs a remote call up to Attempts times, waiting
// BaseDelay * 2^(attempt-1) after each failed attempt.
type Retrier struct {
	Attempts  int
	BaseDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a retrier that waits on the wall clock
func NewRetrier(attempts int, baseDelay time.Duration) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrier{Attempts: attempts, BaseDelay: baseDelay, sleep: sleepContext}
}

// Delay returns the wait after the given failed attempt (1-based)
func (r *Retrier) Delay(attempt int) time.Duration {
	return time.Duration(float64(r.BaseDelay) * math.Pow(2, float64(attempt-1)))
}

// Do calls fn until it succeeds or attempts run out, returning the last error.
// A not-found answer is final and is not retried.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		if err = fn(ctx); err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
		if attempt == r.Attempts {
			break
		}
		util.RemoteQueryRetriesTotal.Inc()
		if serr := r.sleep(ctx, r.Delay(attempt)); serr != nil {
			return err
		}
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
