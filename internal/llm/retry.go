package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/bher20/tariffmanager/internal/metrics"
)

// RetryConfig controls the exponential backoff around a provider call.
type RetryConfig struct {
	// MaxRetries is the total number of attempts, not the number of re-tries.
	MaxRetries int
	// InitialDelay is the wait after the first failure; it doubles after each
	// further failure.
	InitialDelay time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
	}
}

// ErrRetriesExhausted is returned once every attempt failed. The last
// underlying error is wrapped alongside it.
var ErrRetriesExhausted = errors.New("llm: retries exhausted")

// ErrUnsupported marks an operation a provider cannot perform.
var ErrUnsupported = errors.New("llm: unsupported operation")

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as not worth retrying.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err was marked with Fatal.
func IsFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe)
}

// Retry runs fn until it succeeds, returns a fatal error, ctx is done, or
// cfg.MaxRetries attempts have failed. The wait before attempt n+1 is
// InitialDelay * 2^(n-1).
func Retry[T any](ctx context.Context, cfg RetryConfig, log *zap.Logger, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if log == nil {
		log = zap.NewNop()
	}

	maxAttempts := cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	base := cfg.InitialDelay
	if base <= 0 {
		base = time.Nanosecond
	}

	var (
		result  T
		attempt int
		lastErr error
	)

	next := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewExponential(base))
	backoff := retry.BackoffFunc(func() (time.Duration, bool) {
		delay, stop := next.Next()
		if !stop {
			log.Info("retrying llm call",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Duration("delay", delay))
		}
		return delay, stop
	})

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		metrics.LLMAttemptsTotal.WithLabelValues(op).Inc()
		log.Debug("llm call attempt",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts))

		v, err := fn(ctx)
		if err != nil {
			lastErr = err
			metrics.LLMFailuresTotal.WithLabelValues(op).Inc()
			log.Warn("llm call attempt failed",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", maxAttempts),
				zap.Error(err))
			if IsFatal(err) || ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		result = v
		return nil
	})
	if err == nil {
		return result, nil
	}

	if IsFatal(err) {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, fmt.Errorf("%s: %w", op, ctxErr)
	}
	if lastErr == nil {
		lastErr = err
	}
	metrics.LLMExhaustedTotal.WithLabelValues(op).Inc()
	log.Error("llm call failed after all attempts",
		zap.String("op", op),
		zap.Int("attempts", attempt),
		zap.Error(lastErr))
	return zero, fmt.Errorf("%w: %s failed after %d attempts: %w", ErrRetriesExhausted, op, attempt, lastErr)
}
