// Package retry provides a bounded, fixed-delay retry combinator for
// the external generation calls. The policy is deliberately simple: at
// most MaxAttempts tries, a constant Delay between them, first success
// wins. No backoff, no jitter; the upstream quota is paced by a flat
// per-call interval, not by congestion.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Retrier runs operations under a fixed Policy.
type Retrier struct {
	policy Policy
	logger *slog.Logger
}

// New creates a Retrier. MaxAttempts below 1 is clamped to 1 so Do
// always runs the operation at least once.
func New(policy Policy, logger *slog.Logger) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Retrier{policy: policy, logger: logger}
}

// Do runs op until it succeeds or the attempt budget is spent. Attempts
// are independent; nothing is carried between them. The inter-attempt
// wait is cancellable through ctx.
func (r *Retrier) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		start := time.Now()
		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("operation_succeeded_after_retry",
					slog.String("operation", name),
					slog.Int("attempt", attempt),
					slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))
			}
			return nil
		}

		r.logger.Warn("operation_attempt_failed",
			slog.String("operation", name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", r.policy.MaxAttempts),
			slog.String("error", lastErr.Error()),
			slog.Int64("elapsed_ms", time.Since(start).Milliseconds()))

		if attempt == r.policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(r.policy.Delay):
		}
	}

	return fmt.Errorf("operation %s failed after %d attempts: %w", name, r.policy.MaxAttempts, lastErr)
}
