// Package retry is the reliable dispatcher for outbound and AI calls.
// Every network call in the pipeline (model invocation, Telegram sends)
// goes through Do so failures are classified, retried with bounded
// exponential backoff, and surfaced as normalized results instead of
// crashing the conversation turn.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Config controls retry behaviour. Immutable once created.
type Config struct {
	MaxAttempts int           // total attempts, including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // backoff ceiling
	Multiplier  float64       // backoff growth factor
	CallTimeout time.Duration // per-attempt deadline (0 = no extra deadline)
}

// DefaultConfig mirrors the production defaults: 3 attempts,
// 1s base, 4s ceiling, x2 growth, 8s per-call timeout.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    4 * time.Second,
		Multiplier:  2,
		CallTimeout: 8 * time.Second,
	}
}

// HTTPError carries an HTTP status from a provider or platform API so the
// dispatcher can separate retryable faults from terminal client errors.
type HTTPError struct {
	Status      int
	Description string
}

func (e *HTTPError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("http status %d", e.Status)
	}
	return fmt.Sprintf("http status %d: %s", e.Status, e.Description)
}

// Retryable reports whether an error is worth another attempt.
// Request timeouts, network failures, rate limits and server faults are
// retryable; any other HTTP 4xx is terminal. Unknown errors are treated as
// network-level faults (the outbound channel is assumed unreliable).
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 408, httpErr.Status == 429:
			return true
		case httpErr.Status >= 500:
			return true
		case httpErr.Status >= 400:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return true
}

// Do runs op with the configured retry policy. Each attempt gets its own
// deadline when CallTimeout is set; a per-attempt timeout counts as a
// retryable failure. On exhaustion the last error is returned wrapped, so
// callers can log-and-skip rather than crash the turn.
func Do[T any](ctx context.Context, cfg Config, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := runAttempt(ctx, cfg.CallTimeout, op)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !Retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoffDelay(cfg, attempt)):
		}
	}

	return zero, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(attemptCtx)
}

// backoffDelay returns min(base × multiplier^(attempt-1), max).
func backoffDelay(cfg Config, attempt int) time.Duration {
	mult := cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(cfg.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
	}
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}
