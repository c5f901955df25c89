package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	appconfig "github.com/sentinnell/analytics_api/internal/config"
	"github.com/sentinnell/analytics_api/internal/utils"
)

// Connect opens the SQLite file described by cfg. Read-only connections are
// opened with mode=ro so SQLite refuses writes as well. The returned *sqlx.DB
// has pool settings pre-configured and is pinged before returning; a ping that
// hits a locked file is retried with the configured policy.
func Connect(cfg *appconfig.DatabaseConfig) (*sqlx.DB, error) {
	if cfg == nil {
		return nil, errors.New("nil database config")
	}

	if cfg.ReadOnly {
		if _, err := os.Stat(cfg.Path); err != nil {
			return nil, fmt.Errorf("%w: read-only database %s: %w", utils.ErrStorageFault, cfg.Path, err)
		}
	} else if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create database dir: %w", utils.ErrStorageFault, err)
		}
	}

	db, err := sqlx.Open("sqlite3", DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", utils.ErrStorageFault, err)
	}
	setPool(db.DB, cfg.MaxOpenConns)

	policy := NewRetryPolicy(cfg.MaxRetries, cfg.RetryBaseDelay)
	err = policy.Do(context.Background(), "ping", func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, lockWait(cfg))
		defer cancel()
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		if errors.Is(err, utils.ErrStorageContention) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: ping database: %w", utils.ErrStorageFault, err)
	}
	return db, nil
}

// DSN builds the go-sqlite3 connection string. Every connection waits up to
// the lock-wait timeout for a competing writer before failing with SQLITE_BUSY,
// and read-write transactions take the write lock at BEGIN so a lookup and
// the write that follows it cannot interleave with another writer.
func DSN(cfg *appconfig.DatabaseConfig) string {
	params := url.Values{}
	params.Set("_busy_timeout", strconv.FormatInt(lockWait(cfg).Milliseconds(), 10))
	if cfg.ReadOnly {
		params.Set("mode", "ro")
		params.Set("_query_only", "true")
	} else {
		params.Set("mode", "rwc")
		params.Set("_txlock", "immediate")
	}
	return "file:" + cfg.Path + "?" + params.Encode()
}

// setPool configures the connection pool for the database. Serverless
// invocations are short-lived, so idle connections are not kept long.
func setPool(db *sql.DB, maxOpen int) {
	if maxOpen <= 0 {
		maxOpen = 1
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	db.SetConnMaxIdleTime(time.Minute)
}

func lockWait(cfg *appconfig.DatabaseConfig) time.Duration {
	if cfg.LockWaitTimeout <= 0 {
		return 5 * time.Second
	}
	return cfg.LockWaitTimeout
}
