package crawler

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Runner executes one complete crawl.
type Runner interface {
	Run(ctx context.Context, req Request) (Result, error)
}

// RetryRunner re-runs a whole crawl while it produces no records, up to
// maxAttempts times. There is no backoff between attempts.
type RetryRunner struct {
	runner      Runner
	maxAttempts int
	logger      *zap.Logger
}

// NewRetryRunner wraps runner. maxAttempts below one is treated as one.
func NewRetryRunner(runner Runner, maxAttempts int, logger *zap.Logger) *RetryRunner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryRunner{
		runner:      runner,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// ShouldRetry decides whether another attempt is warranted. Errors are final:
// configuration errors cannot improve and interrupted crawls must stop.
func (r *RetryRunner) ShouldRetry(result Result, err error, attempt int) bool {
	if err != nil {
		return false
	}
	if attempt >= r.maxAttempts {
		return false
	}
	return result.Empty()
}

// Run implements Runner. When every attempt comes back empty it returns the
// last result together with ErrNoResults.
func (r *RetryRunner) Run(ctx context.Context, req Request) (Result, error) {
	for attempt := 1; ; attempt++ {
		result, err := r.runner.Run(ctx, req)
		if r.ShouldRetry(result, err, attempt) {
			r.logger.Info("crawl found no results; retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", r.maxAttempts),
			)
			continue
		}
		if err == nil && result.Empty() {
			return result, ErrNoResults
		}
		return result, err
	}
}

// IsNoResults reports whether err is the "no results" condition.
func IsNoResults(err error) bool {
	return errors.Is(err, ErrNoResults)
}
