package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinnell/analytics_api/internal/utils"
)

// recordingPolicy returns a policy whose sleeps are captured instead of waited.
func recordingPolicy(maxRetries int, base time.Duration) (*RetryPolicy, *[]time.Duration) {
	var delays []time.Duration
	p := NewRetryPolicy(maxRetries, base)
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return p, &delays
}

func busyErr() error {
	return sqlite3.Error{Code: sqlite3.ErrBusy}
}

func TestRetryPolicy_ExhaustsAfterMaxRetries(t *testing.T) {
	p, delays := recordingPolicy(3, 500*time.Millisecond)

	attempts := 0
	err := p.Do(context.Background(), "upsert", func(ctx context.Context) error {
		attempts++
		return busyErr()
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrStorageContention)
	assert.Equal(t, 4, attempts, "one initial attempt plus three retries")
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 1500 * time.Millisecond}, *delays)
}

func TestRetryPolicy_RecoversBeforeBudget(t *testing.T) {
	p, delays := recordingPolicy(3, 10*time.Millisecond)

	attempts := 0
	err := p.Do(context.Background(), "upsert", func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("begin: %w", sqlite3.Error{Code: sqlite3.ErrLocked})
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, *delays, 2)
}

func TestRetryPolicy_DoesNotRetryOtherErrors(t *testing.T) {
	p, delays := recordingPolicy(3, 10*time.Millisecond)

	corrupt := sqlite3.Error{Code: sqlite3.ErrCorrupt}
	attempts := 0
	err := p.Do(context.Background(), "query", func(ctx context.Context) error {
		attempts++
		return corrupt
	})

	assert.Equal(t, 1, attempts)
	assert.Empty(t, *delays)
	assert.NotErrorIs(t, err, utils.ErrStorageContention)
	assert.True(t, errors.Is(err, corrupt))
}

func TestRetryPolicy_ZeroRetries(t *testing.T) {
	p, _ := recordingPolicy(0, time.Millisecond)

	attempts := 0
	err := p.Do(context.Background(), "exists", func(ctx context.Context) error {
		attempts++
		return busyErr()
	})
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, utils.ErrStorageContention)
}

func TestRetryPolicy_StopsWhenContextDone(t *testing.T) {
	p := NewRetryPolicy(3, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := p.Do(ctx, "upsert", func(ctx context.Context) error {
		attempts++
		cancel()
		return busyErr()
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, utils.ErrRequestCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, utils.ErrStorageContention)
}

func TestRetryPolicy_DeadlineIsContention(t *testing.T) {
	p := NewRetryPolicy(3, time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, "upsert", func(ctx context.Context) error {
		return busyErr()
	})

	assert.ErrorIs(t, err, utils.ErrStorageContention)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIsLockContention(t *testing.T) {
	assert.True(t, IsLockContention(busyErr()))
	assert.True(t, IsLockContention(fmt.Errorf("wrapped: %w", sqlite3.Error{Code: sqlite3.ErrLocked})))
	assert.True(t, IsLockContention(fmt.Errorf("%w: deadline", errAcquireTimeout)))
	assert.False(t, IsLockContention(sqlite3.Error{Code: sqlite3.ErrConstraint}))
	assert.False(t, IsLockContention(errors.New("database is locked")))
	assert.False(t, IsLockContention(nil))
}

func TestLinearBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, LinearBackoff(1, 500*time.Millisecond))
	assert.Equal(t, 1500*time.Millisecond, LinearBackoff(3, 500*time.Millisecond))
}
