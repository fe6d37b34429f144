// Package retry implements the bounded, constant-delay retry used to bring
// up connections at startup.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ErrExhausted is matched by every error returned when all attempts failed.
var ErrExhausted = errors.New("retry budget exhausted")

// ExhaustedError carries the last failure once the budget is spent.
type ExhaustedError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s: gave up after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}

// Policy retries an operation up to MaxAttempts times, waiting Delay between
// attempts. There is no growth and no jitter.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration

	// timer replaces the wall clock in tests.
	timer backoff.Timer
}

// Default is five attempts three seconds apart.
var Default = Policy{MaxAttempts: 5, Delay: 3 * time.Second}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs op until it succeeds, the budget is spent or ctx is done. Every
// failed attempt is logged with its counter. Wrap an error with
// backoff.Permanent to stop retrying immediately; the result then does not
// match ErrExhausted.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, operation string, op func(ctx context.Context) error) error {
	if logger == nil {
		logger = slog.Default()
	}
	limit := p.attempts()

	attempt := 0
	permanent := false
	try := func() error {
		attempt++
		err := op(ctx)
		var perr *backoff.PermanentError
		permanent = errors.As(err, &perr)
		if err != nil {
			logger.ErrorContext(ctx, "attempt failed",
				"operation", operation,
				"attempt", attempt,
				"max_attempts", limit,
				"error", err,
			)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(limit-1)),
		ctx,
	)

	err := backoff.RetryNotifyWithTimer(try, b, nil, p.timer)
	if err == nil {
		if attempt > 1 {
			logger.InfoContext(ctx, "succeeded after retry", "operation", operation, "attempt", attempt)
		}
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", operation, ctxErr)
	}
	if permanent {
		return fmt.Errorf("%s: %w", operation, err)
	}

	logger.ErrorContext(ctx, "max retries reached, giving up",
		"operation", operation,
		"attempts", attempt,
		"error", err,
	)
	return &ExhaustedError{Operation: operation, Attempts: attempt, Err: err}
}
