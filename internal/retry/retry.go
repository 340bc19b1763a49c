// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// retry.go - Fixed-budget, fixed-delay retry primitive.
//
// Execute re-invokes an operation until it succeeds or the policy's attempt budget
// is spent, sleeping policy.Delay between attempts. There is no exponential growth:
// every pause is the same length. Whether an exhausted budget is fatal is the
// caller's decision; Execute only reports it as an *ExhaustedError.
//
// Wrapped operations must be safe to issue more than once.
//
// Usage Example:
//   page, err := retry.Execute(ctx, retry.DefaultPolicy, func(ctx context.Context) (Page, error) {
//       return client.FetchGroupsPage(ctx, query)
//   })
//   var exhausted *retry.ExhaustedError
//   if errors.As(err, &exhausted) {
//       logging.RetryLogger.Error("Giving up", "attempts", exhausted.Attempts, "error", exhausted.Err)
//   }

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gebl/label-reassigner/internal/logging"
)

// Policy configures the retry budget.
type Policy struct {
	MaxAttempts int           // Total attempts including the first; must be >= 1
	Delay       time.Duration // Pause between consecutive attempts
}

// DefaultPolicy is three attempts five seconds apart.
var DefaultPolicy = Policy{MaxAttempts: 3, Delay: 5 * time.Second}

// Validate reports whether the policy can be executed.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Delay < 0 {
		return fmt.Errorf("retry policy: delay must not be negative, got %s", p.Delay)
	}
	return nil
}

// ExhaustedError is returned when every attempt failed.
// Err is the error from the last attempt.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Execute runs op under policy and returns its first successful result.
func Execute[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := policy.Validate(); err != nil {
		return zero, err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(policy.Delay), uint64(policy.MaxAttempts-1)),
		ctx,
	)

	attempts := 0
	var lastErr error
	result, err := backoff.RetryNotifyWithData(func() (T, error) {
		attempts++
		v, opErr := op(ctx)
		if opErr != nil {
			lastErr = opErr
		}
		return v, opErr
	}, b, func(opErr error, wait time.Duration) {
		logging.RetryLogger.Warn("Attempt failed, retrying",
			"attempt", attempts,
			"remaining", policy.MaxAttempts-attempts,
			"wait", wait,
			"error", opErr)
	})
	if err == nil {
		return result, nil
	}

	final := lastErr
	switch {
	case final == nil:
		final = err
	case !errors.Is(final, err):
		// Context ended while waiting; keep both causes.
		final = errors.Join(err, lastErr)
	}
	logging.RetryLogger.Debug("Retry budget exhausted", "attempts", attempts, "error", final)
	return zero, &ExhaustedError{Attempts: attempts, Err: final}
}

// Do is Execute for operations without a result value.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	_, err := Execute(ctx, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
