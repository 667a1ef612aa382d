// Package store is the persistent key/value layer holding computed
// matrices, user selections and session identity across restarts.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// Register the sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/okrause/seriesdash/internal/logger"
)

// Store wraps a sqlite-backed key/value table.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates (if needed) and opens the store at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	s := &Store{db: db, path: path}

	if err := s.configure(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to configure store: %w", err)
	}
	if err := s.createSchema(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) createSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// isStorageFull detects the sqlite out-of-space condition, the local analog
// of a browser storage quota error.
func isStorageFull(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database or disk is full") ||
		strings.Contains(msg, "disk i/o error")
}

// Save marshals v and upserts it under key. A storage-full failure removes
// only the offending key and logs a warning instead of propagating, so one
// oversized metric result can never block writes for other kinds.
func (s *Store) Save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(data))
	if err != nil {
		if isStorageFull(err) {
			logger.Warn("store is full, dropping key", "key", key, "error", err)
			if _, delErr := s.db.ExecContext(context.Background(),
				"DELETE FROM kv WHERE key = ?", key); delErr != nil {
				logger.Warn("failed to drop key from full store", "key", key, "error", delErr)
			}
			return nil
		}
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Load unmarshals the value under key into out. Returns (false, nil) when
// the key is absent. Corrupt persisted JSON is discarded: the key is
// removed, a warning logged, and the value reported absent so callers can
// decide between refetching and waiting for user action.
func (s *Store) Load(key string, out any) (bool, error) {
	var value string
	err := s.db.QueryRowContext(context.Background(),
		"SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(value), out); err != nil {
		logger.Warn("corrupt persisted data, removing key", "key", key, "error", err)
		if remErr := s.Remove(key); remErr != nil {
			logger.Warn("failed to remove corrupt key", "key", key, "error", remErr)
		}
		return false, nil
	}
	return true, nil
}

// LoadRaw returns the stored JSON text for key without decoding it, letting
// callers that need to distinguish "absent" from "corrupt" do their own
// unmarshalling.
func (s *Store) LoadRaw(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(context.Background(),
		"SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return value, true, nil
}

// Remove deletes a key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	_, err := s.db.ExecContext(context.Background(), "DELETE FROM kv WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Keys returns all stored keys, used by Reset and tests.
func (s *Store) Keys() ([]string, error) {
	rows, err := s.db.QueryContext(context.Background(), "SELECT key FROM kv ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("failed to close rows", "error", err)
		}
	}()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Reset clears exactly the data-bearing keys (time series, category index,
// per-kind results, selection, plugin cache) while preserving the session
// token, plugin definitions and UI preferences.
func (s *Store) Reset() error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}

	for _, key := range keys {
		if !clearedByReset(key) {
			continue
		}
		if err := s.Remove(key); err != nil {
			return err
		}
	}
	return nil
}

// Close checkpoints the WAL and closes the database.
func (s *Store) Close() error {
	_, _ = s.db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
