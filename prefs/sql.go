// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/danielhkuo/usdt-elasticity/db"
)

// SQLStore keeps preferences in the preference table (sqlite or postgres).
type SQLStore struct {
	conn   *sql.DB
	dbType string
	owned  bool
}

// NewSQLStore wraps an open connection whose schema already exists.
// Close does not close conn.
func NewSQLStore(conn *sql.DB, dbType string) *SQLStore {
	return &SQLStore{conn: conn, dbType: dbType}
}

// OpenSQL opens the database, creates the schema and returns a store
// that owns the connection.
func OpenSQL(ctx context.Context, dbType, url string) (*SQLStore, error) {
	driver, err := db.DriverName(dbType)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("database url is required")
	}

	dsn := url
	memory := false
	if dbType == db.TypeSQLite {
		memory = url == ":memory:"
		if !memory {
			dsn = filepath.Clean(url) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
		}
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", dbType, err)
	}
	if memory {
		// Each pooled connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s db: %w", dbType, err)
	}
	if err := db.CreateSchema(conn, dbType); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &SQLStore{conn: conn, dbType: dbType, owned: true}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		db.Rebind(s.dbType, `SELECT value FROM preference WHERE key = ?`), key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx, db.Rebind(s.dbType, `
		INSERT INTO preference (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`), key, value, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.conn.ExecContext(ctx, db.Rebind(s.dbType, `DELETE FROM preference WHERE key = ?`), key); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	return nil
}

// Close closes the connection when the store opened it.
func (s *SQLStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.conn.Close()
}
