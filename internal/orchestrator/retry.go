package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/lamim/scripturai/internal/metrics"
	"github.com/lamim/scripturai/pkg/models"
)

// DefaultBaseDelay is the backoff unit: the wait after failure k is k * base
const DefaultBaseDelay = time.Second

// RetryExecutor runs an operation up to a fixed number of times with linear backoff
type RetryExecutor struct {
	baseDelay time.Duration
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewRetryExecutor creates an executor. collector may be nil.
func NewRetryExecutor(baseDelay time.Duration, collector *metrics.Collector, logger *slog.Logger) *RetryExecutor {
	if baseDelay < 0 {
		baseDelay = 0
	}
	return &RetryExecutor{
		baseDelay: baseDelay,
		metrics:   collector,
		logger:    logger.With("component", "retry"),
	}
}

// Run calls fn until it succeeds or maxAttempts calls have failed, and reports
// success. Precondition and data errors stop after one call. attrs are added to
// every failure log, e.g. "book", "Genesis".
func (r *RetryExecutor) Run(ctx context.Context, operation string, fn func(context.Context) error, maxAttempts int, attrs ...any) bool {
	if maxAttempts < 1 {
		// retry-go treats 0 attempts as unlimited
		maxAttempts = 1
	}

	attempt := 0
	err := retry.Do(
		func() error {
			attempt++
			err := fn(ctx)
			if err != nil {
				r.logger.Warn("Attempt failed",
					append([]any{
						"operation", operation,
						"attempt", attempt,
						"max_attempts", maxAttempts,
						"retryable", models.Retryable(err),
						"error", err,
					}, attrs...)...)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			// retry-go numbers the wait after failure k as k, starting at 1
			return time.Duration(n) * r.baseDelay
		}),
		retry.RetryIf(func(err error) bool {
			return ctx.Err() == nil && models.Retryable(err)
		}),
		retry.OnRetry(func(n uint, _ error) {
			if r.metrics != nil {
				r.metrics.RecordFailedAttempt(operation)
			}
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		r.logger.Error("Operation failed",
			append([]any{
				"operation", operation,
				"attempts", attempt,
				"error", err,
			}, attrs...)...)
		return false
	}

	if attempt > 1 {
		r.logger.Info("Operation succeeded after retry",
			append([]any{"operation", operation, "attempts", attempt}, attrs...)...)
	}
	return true
}
