// Package retry runs storage calls again on transient failures with a
// capped exponential backoff.
package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/age-gate/internal/logging"
)

// Policy bounds the attempts of one operation.
type Policy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Final reports errors that must be returned at once, such as a cache
	// miss or a missing row.
	Final func(error) bool
}

// Default is the policy used for database and cache calls.
func Default() Policy {
	return Policy{
		Attempts:       3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
	}
}

// Do calls fn until it succeeds, fails with a non transient error or runs
// out of attempts. Every returned error is a *logging.OperationError.
func (p Policy) Do(ctx context.Context, logger *zap.Logger, operation, id string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	opLogger := logging.WithOperation(logger, operation, id)
	backoff := p.InitialBackoff

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return logging.NewOperationError(operation, id, ctx.Err())
			case <-timer.C:
			}
			if next := backoff * 2; next <= p.MaxBackoff {
				backoff = next
			}
		}

		if err = fn(); err == nil {
			if attempt > 0 {
				opLogger.Info("operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}
		if p.Final != nil && p.Final(err) {
			return logging.NewOperationError(operation, id, err)
		}
		if !IsTransient(err) || attempt == attempts-1 {
			opLogger.Error("operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, id, err)
		}
		opLogger.Warn("transient error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, id, err)
}

// IsTransient reports timeouts and errors that declare themselves temporary.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var temporary interface{ Temporary() bool }
	return errors.As(err, &temporary) && temporary.Temporary()
}
