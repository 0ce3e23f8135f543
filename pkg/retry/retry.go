package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	errs "harvester/pkg/errors"
	"harvester/pkg/logger"
)

// Operation is one attempt at something that may need retrying
type Operation func(ctx context.Context) error

// OperationWithResult is an attempt that also produces a value
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts bounds the total number of attempts (0 means unlimited).
	// Processing responses count toward it like any other failure.
	MaxAttempts int
	// Backoff is consulted with the number of hard failures so far
	Backoff BackoffStrategy
	// ProcessingPause is the fixed wait after a "still processing" response.
	// Such responses do not advance the backoff exponent.
	ProcessingPause time.Duration
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// IsProcessing tells "come back later" responses apart from hard failures
	IsProcessing func(error) bool
	// OnRetry is called before each wait
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep defaults to Wait; tests swap it to avoid real delays
	Sleep  SleepFunc
	Logger logger.Logger
}

// DefaultConfig returns five attempts with 1s, 2s, 4s, 8s backoff and a 3s processing pause
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:     5,
		Backoff:         DefaultExponentialBackoff(),
		ProcessingPause: 3 * time.Second,
		RetryIf:         DefaultRetryIf,
		IsProcessing:    DefaultIsProcessing,
		Sleep:           Wait,
		Logger:          logger.GetLogger(),
	}
}

// DefaultRetryIf is the default retry predicate
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// Default to retrying unknown errors
	return true
}

// DefaultIsProcessing matches errors classified as processing responses (HTTP 202)
func DefaultIsProcessing(err error) bool {
	return errs.Is(err, errs.ErrorTypeProcessing)
}

// ExhaustedError is returned once MaxAttempts retryable failures have been seen
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsExhausted reports whether err came from running out of attempts
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

func (cfg *Config) withDefaults() *Config {
	c := *cfg
	if c.Backoff == nil {
		c.Backoff = DefaultExponentialBackoff()
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	if c.IsProcessing == nil {
		c.IsProcessing = DefaultIsProcessing
	}
	if c.Sleep == nil {
		c.Sleep = Wait
	}
	if c.Logger == nil {
		c.Logger = logger.NewNopLogger()
	}
	return &c
}

// Do executes op until it succeeds, fails permanently or runs out of attempts.
// It returns the number of attempts made. There is no wait after the last attempt.
func Do(ctx context.Context, op Operation, cfg *Config) (int, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.withDefaults()

	failures := 0
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, fmt.Errorf("retry cancelled: %w", err)
		}

		err := op(ctx)
		if err == nil {
			if attempt > 1 {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return attempt, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, fmt.Errorf("retry cancelled: %w", ctxErr)
		}

		if !cfg.RetryIf(err) {
			cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
				"attempt": attempt,
				"error":   err.Error(),
			})
			return attempt, err
		}

		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			cfg.Logger.WarnWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			return attempt, &ExhaustedError{Attempts: attempt, Last: err}
		}

		var delay time.Duration
		if cfg.IsProcessing(err) {
			delay = cfg.ProcessingPause
		} else {
			failures++
			delay = cfg.Backoff.NextDelay(failures)
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}

		cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"error":        err.Error(),
			"delay":        delay,
		})

		if err := cfg.Sleep(ctx, delay); err != nil {
			return attempt, fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], cfg *Config) (T, int, error) {
	var result T

	attempts, err := Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}, cfg)

	return result, attempts, err
}
