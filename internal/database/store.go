package database

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	appconfig "github.com/sentinnell/analytics_api/internal/config"
	"github.com/sentinnell/analytics_api/internal/utils"
)

// Store owns the embedded database and the rules for touching it: read-only
// guard, scoped connections, and retry on lock contention.
type Store struct {
	db       *sqlx.DB
	readOnly bool
	lockWait time.Duration
	retry    *RetryPolicy
}

// Open connects to the database described by cfg and wraps it in a Store.
func Open(cfg *appconfig.DatabaseConfig) (*Store, error) {
	db, err := Connect(cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(db, cfg), nil
}

// NewStore wraps an open database.
func NewStore(db *sqlx.DB, cfg *appconfig.DatabaseConfig) *Store {
	return &Store{
		db:       db,
		readOnly: cfg.ReadOnly,
		lockWait: lockWait(cfg),
		retry:    NewRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay),
	}
}

// ReadOnly reports whether mutations are disallowed.
func (s *Store) ReadOnly() bool { return s.readOnly }

// DB exposes the pool, for migrations.
func (s *Store) DB() *sqlx.DB { return s.db }

// SetRetryPolicy replaces the contention retry policy.
func (s *Store) SetRetryPolicy(p *RetryPolicy) { s.retry = p }

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

// Conn is a pooled connection that must be released exactly once.
type Conn struct {
	*sqlx.Conn
	once sync.Once
}

// Release returns the connection to the pool. Safe to call more than once.
func (c *Conn) Release() {
	c.once.Do(func() { _ = c.Conn.Close() })
}

// Acquire checks a connection out of the pool, waiting at most the lock-wait
// timeout. Callers must defer Release.
func (s *Store) Acquire(ctx context.Context) (*Conn, error) {
	actx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	c, err := s.db.Connx(actx)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", errAcquireTimeout, err)
		}
		return nil, err
	}
	return &Conn{Conn: c}, nil
}

// WithConn runs fn on a scoped connection; the connection is released on
// every exit path, panics included.
func (s *Store) WithConn(ctx context.Context, fn func(ctx context.Context, conn *sqlx.Conn) error) error {
	conn, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(ctx, conn.Conn)
}

// Read runs a read-only operation with contention retries.
func (s *Store) Read(ctx context.Context, op string, fn func(ctx context.Context, conn *sqlx.Conn) error) error {
	err := s.retry.Do(ctx, op, func(ctx context.Context) error {
		return s.WithConn(ctx, fn)
	})
	return classify(op, err)
}

// Write runs fn inside a single transaction with contention retries. It
// fails with utils.ErrReadOnly before touching the store in read-only mode.
func (s *Store) Write(ctx context.Context, op string, fn func(ctx context.Context, tx *sqlx.Tx) error) error {
	if s.readOnly {
		return fmt.Errorf("%w: %s", utils.ErrReadOnly, op)
	}
	err := s.retry.Do(ctx, op, func(ctx context.Context) error {
		return s.WithConn(ctx, func(ctx context.Context, conn *sqlx.Conn) error {
			tx, err := conn.BeginTxx(ctx, nil)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback() }()

			if err := fn(ctx, tx); err != nil {
				return err
			}
			return tx.Commit()
		})
	})
	return classify(op, err)
}

var passthrough = []error{
	utils.ErrValidation,
	utils.ErrReadOnly,
	utils.ErrProductNotFound,
	utils.ErrStorageContention,
	utils.ErrStorageFault,
	utils.ErrRequestCanceled,
}

// classify maps a raw store error onto the application error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range passthrough {
		if errors.Is(err, known) {
			return err
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %s: %w", utils.ErrRequestCanceled, op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %s: %w", utils.ErrStorageContention, op, err)
	case isStoreReadOnly(err):
		return fmt.Errorf("%w: %s: %w", utils.ErrReadOnly, op, err)
	default:
		return fmt.Errorf("%w: %s: %w", utils.ErrStorageFault, op, err)
	}
}
