package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/sentinnell/analytics_api/internal/utils"
)

// errAcquireTimeout marks a pool checkout that outlived the lock-wait bound.
var errAcquireTimeout = errors.New("connection acquisition timed out")

// RetryPolicy retries an operation while it fails with lock contention.
// Any other error is returned on the first occurrence.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// Backoff returns the pause after the given failed attempt (1-based).
	Backoff func(attempt int, base time.Duration) time.Duration
	// Retryable reports whether err is worth another attempt.
	Retryable func(err error) bool
	// Sleep pauses for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy returns a policy with linear backoff that retries only on
// SQLite lock contention.
func NewRetryPolicy(maxRetries int, base time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  base,
		Backoff:    LinearBackoff,
		Retryable:  IsLockContention,
		Sleep:      sleepContext,
	}
}

// LinearBackoff waits attempt * base.
func LinearBackoff(attempt int, base time.Duration) time.Duration {
	return time.Duration(attempt) * base
}

// Do runs fn up to MaxRetries+1 times. When every attempt fails with
// contention the result wraps utils.ErrStorageContention and the last cause.
func (p *RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := p.MaxRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !p.Retryable(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}

		delay := p.Backoff(attempt, p.BaseDelay)
		log.Warn().
			Str("op", op).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(lastErr).
			Msg("store locked, retrying")
		if err := p.Sleep(ctx, delay); err != nil {
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("%w: %s: %w", utils.ErrRequestCanceled, op, err)
			}
			return fmt.Errorf("%w: %s: %w", utils.ErrStorageContention, op, err)
		}
	}

	log.Error().Str("op", op).Int("attempts", attempts).Err(lastErr).Msg("store lock retries exhausted")
	return fmt.Errorf("%w: %s after %d attempts: %w", utils.ErrStorageContention, op, attempts, lastErr)
}

// IsLockContention reports whether err means another writer holds the store.
func IsLockContention(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errAcquireTimeout) {
		return true
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code == sqlite3.ErrBusy || sqErr.Code == sqlite3.ErrLocked
	}
	return false
}

// isStoreReadOnly reports whether SQLite itself refused a write.
func isStoreReadOnly(err error) bool {
	var sqErr sqlite3.Error
	return errors.As(err, &sqErr) && sqErr.Code == sqlite3.ErrReadonly
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
