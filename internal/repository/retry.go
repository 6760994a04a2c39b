package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"
	"time"

	"veristat/internal/models"
	"veristat/internal/observability"
)

// WithRetry runs fn, retrying transient storage failures up to attempts
// times with doubling backoff. Non-transient errors (validation, not-found,
// authorization, plain query errors) surface immediately; a transient error
// that survives every attempt surfaces as a TRANSIENT AppError, which the
// caller may safely retry.
func WithRetry(ctx context.Context, operation string, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			observability.TransientRetries.WithLabelValues(operation).Inc()
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return models.NewTransientError(ctx.Err())
			}
			backoff *= 2
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
	}
	return models.NewTransientError(err)
}

// IsTransient reports whether err looks like storage contention or a
// connectivity blip rather than a definitive failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == models.CodeTransient
	}

	// Driver errors carry no stable sentinel across postgres and sqlite;
	// match the messages both are known to emit under contention.
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"deadlock detected",
		"could not serialize access",
		"connection refused",
		"connection reset",
		"i/o timeout",
		"database is locked",
		"busy",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
