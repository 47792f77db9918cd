// Package retry runs collaborator calls under a bounded attempt budget with a constant delay.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	MaxAttempts int           `json:"max_attempts"`
	Delay       time.Duration `json:"delay"`
	// Timeout bounds a single attempt. Zero means the caller's context alone applies.
	Timeout time.Duration `json:"timeout"`
}

var (
	// Interactive is used inside a user turn, where the per-user lock is held: one call,
	// bounded by the timeout. A failure degrades the slot to invalid.
	Interactive = Policy{MaxAttempts: 1, Timeout: 20 * time.Second}
	// Batch is used by offline jobs such as dataset ingestion.
	Batch = Policy{MaxAttempts: 3, Delay: 10 * time.Second, Timeout: 2 * time.Minute}
)

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs op until it succeeds, returns a permanent error, the attempt budget is spent
// or ctx is done. It returns the last error seen.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(p.attempts()-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		defer cancel()
		return op(callCtx)
	}, b, func(err error, next time.Duration) {
		slog.Debug("Retrying call", "attempt", attempt, "max_attempts", p.attempts(), "next_in", next, "error", err)
	})
}
