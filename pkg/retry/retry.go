// Package retry wraps fallible operations with bounded, backoff-spaced
// reattempts. Only transient errors are retried; permanent failures
// return immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"slidescraper/pkg/config"
	"slidescraper/pkg/errs"
	"slidescraper/pkg/logger"
)

// Operation is a function that may need retrying.
type Operation func() error

// OperationWithResult is an Operation that also returns a value.
type OperationWithResult[T any] func() (T, error)

// Config holds retry behavior for one call site.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// Backoff spaces out the attempts.
	Backoff BackoffStrategy
	// RetryIf decides whether an error is worth another attempt.
	RetryIf func(error) bool
	// OnRetry is called before each reattempt.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Context cancels waits between attempts.
	Context context.Context
	// Logger records retry activity.
	Logger logger.Logger
}

// DefaultConfig returns retry settings suitable for most operations.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 4,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Context:     context.Background(),
		Logger:      logger.GetLogger(),
	}
}

// FromConfig derives retry settings from the application configuration.
// MaxRetries counts reattempts, so the attempt budget is MaxRetries+1.
func FromConfig(rc *config.RetryConfig, log logger.Logger) *Config {
	return &Config{
		MaxAttempts: rc.MaxRetries + 1,
		Backoff: &ExponentialBackoff{
			BaseDelay:    rc.BaseDelay,
			MaxDelay:     rc.MaxDelay,
			Multiplier:   rc.Multiplier,
			JitterFactor: 0.1,
		},
		RetryIf: DefaultRetryIf,
		Context: context.Background(),
		Logger:  log,
	}
}

// DefaultRetryIf retries transient error kinds and anything unclassified,
// but never context cancellation.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return errs.IsRetryable(e.Kind)
	}
	return true
}

// ExhaustedError reports that every attempt failed.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %d attempts failed: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Do runs op until it succeeds, fails permanently, or exhausts the
// attempt budget.
func Do(op Operation, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	var lastErr error
	attempt := 0

	for {
		attempt++

		err := op()
		if err == nil {
			if attempt > 1 && cfg.Logger != nil {
				cfg.Logger.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		lastErr = err

		if !cfg.RetryIf(err) {
			if cfg.Logger != nil {
				cfg.Logger.DebugWithFields("error is not retryable", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return err
		}

		// No point waiting out a backoff when no attempt remains.
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			if cfg.Logger != nil {
				cfg.Logger.ErrorWithFields("retry budget exhausted", map[string]interface{}{
					"attempts":   attempt,
					"last_error": lastErr.Error(),
				})
			}
			return &ExhaustedError{Attempts: attempt, LastErr: lastErr}
		}

		delay := cfg.Backoff.NextDelay(attempt)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
		}
		if cfg.Logger != nil {
			cfg.Logger.WarnWithFields("retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"error":        err.Error(),
				"delay_ms":     delay.Milliseconds(),
				"max_attempts": cfg.MaxAttempts,
			})
		}

		if err := Wait(cfg.Context, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult runs an operation returning a value under the same
// retry rules as Do.
func DoWithResult[T any](op OperationWithResult[T], cfg *Config) (T, error) {
	var result T
	err := Do(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, cfg)
	return result, err
}

// Retrier is a reusable retry policy.
type Retrier struct {
	config *Config
}

// NewRetrier creates a Retrier; a nil config uses defaults.
func NewRetrier(cfg *Config) *Retrier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Retrier{config: cfg}
}

func (r *Retrier) Do(op Operation) error {
	return Do(op, r.config)
}

// WithContext returns a copy of the retrier bound to ctx.
func (r *Retrier) WithContext(ctx context.Context) *Retrier {
	cfg := *r.config
	cfg.Context = ctx
	return &Retrier{config: &cfg}
}

// WithMaxAttempts returns a copy of the retrier with a new attempt budget.
func (r *Retrier) WithMaxAttempts(maxAttempts int) *Retrier {
	cfg := *r.config
	cfg.MaxAttempts = maxAttempts
	return &Retrier{config: &cfg}
}
