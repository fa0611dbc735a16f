package store

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tailedflox9-maker/studychat/internal/db"
)

// Policy bounds retry behaviour for store calls. Transient failures are
// retried with exponentially increasing delay; not-found and context
// cancellation are permanent.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxRetries   uint64
}

// DefaultPolicy matches the connection retryer used by the database layer,
// scaled down for per-call latency budgets.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		MaxRetries:   3,
	}
}

// Run executes fn under the policy.
func (p Policy) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialDelay
	bo.MaxInterval = p.MaxDelay
	bo.Multiplier = p.Multiplier
	bo.MaxElapsedTime = 0 // bounded by MaxRetries, not wall clock

	operation := func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, db.ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxRetries), ctx))
}
