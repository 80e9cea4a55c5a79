package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqlitePageSize = 4096

// SQLiteStore implements Store in a single SQLite file. The quota is
// enforced by SQLite itself through max_page_count.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. quota caps the
// database size in bytes; 0 means unlimited.
func NewSQLiteStore(path string, quota int64) (*SQLiteStore, error) {
	if path == "" {
		path = ".cache/wooadmin.db"
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	// page_size has to be set before journal_mode switches to WAL
	dsn := fmt.Sprintf("file:%s?_pragma=page_size(%d)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path, sqlitePageSize)
	if quota > 0 {
		pages := quota / sqlitePageSize
		if pages < 8 {
			pages = 8
		}
		dsn += fmt.Sprintf("&_pragma=max_page_count(%d)", pages)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache_items (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache_items: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache_items WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select cache item: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteStore) SetItem(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_items (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		var se *sqlite.Error
		if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_FULL {
			return fmt.Errorf("upsert cache item: %w", ErrQuotaExceeded)
		}
		return fmt.Errorf("upsert cache item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_items WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete cache item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	return s.keys(ctx, `SELECT key FROM cache_items ORDER BY key`)
}

// KeysWithPrefix implements PrefixLister.
func (s *SQLiteStore) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.keys(ctx, `SELECT key FROM cache_items WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`, prefix)
}

func (s *SQLiteStore) keys(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan cache key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
