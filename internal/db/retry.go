package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sendyhalim/lezeh/internal/logger"
)

const (
	// DefaultMaxAttempts is the default number of tries per query.
	DefaultMaxAttempts = 3
	// DefaultBaseBackoff is the default base backoff duration
	DefaultBaseBackoff = 100 * time.Millisecond
)

// RetryConfig bounds how often a failing read is repeated. Only transient
// failures (lost connections, deadlocks, timeouts) are retried.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
	}
}

func (c RetryConfig) attempts() int {
	if c.MaxAttempts < 1 {
		return 1
	}
	return c.MaxAttempts
}

// withRetry runs fn until it succeeds, fails permanently or the attempts are
// used up. The wait between attempts is BaseBackoff * 2^attempt.
func withRetry(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.attempts(); attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled before attempt %d: %w", op, attempt+1, ctx.Err())
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
		if attempt == cfg.attempts()-1 {
			break
		}

		backoff := cfg.BaseBackoff * time.Duration(1<<uint(attempt))
		logger.Warn("%s failed (attempt %d/%d), retrying in %s: %v", op, attempt+1, cfg.attempts(), backoff, err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled during retry: %w", op, ctx.Err())
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, cfg.attempts(), lastErr)
}

var transientMessages = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"bad connection",
	"deadlock",
	"lock wait timeout exceeded",
	"could not serialize access",
	"too many connections",
	"i/o timeout",
	"database is locked",
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	// PostgreSQL serialization failure and deadlock codes.
	if strings.Contains(msg, "40001") || strings.Contains(msg, "40p01") {
		return true
	}
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
