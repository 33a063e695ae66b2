package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `CREATE TABLE IF NOT EXISTS kv_store (
	key VARCHAR PRIMARY KEY,
	value VARCHAR NOT NULL
)`

// InitDuckDB opens the database at path, creating parent directories and the
// key-value table when missing.
func InitDuckDB(path string) (*sql.DB, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// DuckDBStore is the on-device KeyValueStore.
type DuckDBStore struct {
	db   *sql.DB
	lock *flock.Flock
	keys keyLocks

	closeOnce sync.Once
	closeErr  error
}

// OpenDuckDB opens the store at path and takes an exclusive lock next to it so
// two processes never interleave writes to the same logical keys.
func OpenDuckDB(path string) (*DuckDBStore, error) {
	if path == "" {
		return nil, errors.New("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire store lock: %w", err)
	}
	if !locked {
		return nil, ErrStoreLocked
	}

	db, err := InitDuckDB(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return &DuckDBStore{db: db, lock: lock}, nil
}

func (s *DuckDBStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set and Remove wait for any Update in flight on the same key.
func (s *DuckDBStore) Set(ctx context.Context, key, value string) error {
	unlock := s.keys.lock(key)
	defer unlock()
	return s.set(ctx, key, value)
}

func (s *DuckDBStore) Remove(ctx context.Context, key string) error {
	unlock := s.keys.lock(key)
	defer unlock()
	return s.remove(ctx, key)
}

func (s *DuckDBStore) set(ctx context.Context, key, value string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO kv_store (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *DuckDBStore) remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (s *DuckDBStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	unlock := s.keys.lock(key)
	defer unlock()

	current, ok, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	next, keep, err := fn(current, ok)
	if err != nil {
		return err
	}
	if !keep {
		return s.remove(ctx, key)
	}
	return s.set(ctx, key, next)
}

// Keys lists every stored key.
func (s *DuckDBStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM kv_store ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Close closes the database and releases the process lock.
func (s *DuckDBStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.db.Close()
		if err := s.lock.Unlock(); err != nil && s.closeErr == nil {
			s.closeErr = fmt.Errorf("failed to release store lock: %w", err)
		}
	})
	return s.closeErr
}
