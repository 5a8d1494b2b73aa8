// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported database types
const (
	TypePostgres = "postgres"
	TypeSQLite   = "sqlite"
)

// Connection retry policy for startup
const (
	connectAttempts   = 5
	connectBaseDelay  = 500 * time.Millisecond
	connectMaxBackoff = 8 * time.Second
)

// Open connects to the configured database and verifies the connection,
// retrying with exponential backoff while the store is unreachable.
func Open(ctx context.Context, dbType, url string) (*sql.DB, error) {
	driver, dsn, err := driverFor(dbType, url)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dbType, err)
	}

	if driver == TypeSQLite {
		// SQLite allows one writer; a single connection serializes every
		// guarded update and keeps in-memory databases alive.
		conn.SetMaxOpenConns(1)
	}

	delay := connectBaseDelay
	for attempt := 1; ; attempt++ {
		err = conn.PingContext(ctx)
		if err == nil {
			return conn, nil
		}
		if attempt == connectAttempts {
			break
		}

		slog.Warn("database ping failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			conn.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, connectMaxBackoff)
	}

	conn.Close()
	return nil, fmt.Errorf("database unreachable after %d attempts: %w", connectAttempts, err)
}

func driverFor(dbType, url string) (driver, dsn string, err error) {
	switch dbType {
	case TypePostgres:
		return TypePostgres, url, nil
	case TypeSQLite:
		if !strings.Contains(url, "_pragma=") {
			sep := "?"
			if strings.Contains(url, "?") {
				sep = "&"
			}
			url += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
		}
		return TypeSQLite, url, nil
	default:
		return "", "", fmt.Errorf("unsupported database type %q (want postgres or sqlite)", dbType)
	}
}

// IsUniqueViolation reports whether err is a unique or primary key
// constraint failure from either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
			return true
		}
		return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(liteErr.Error(), "UNIQUE")
	}

	return false
}
