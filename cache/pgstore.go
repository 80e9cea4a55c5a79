package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `CREATE TABLE IF NOT EXISTS cache_items (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// PostgresStore implements Store on a cache_items table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and creates the table if needed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create cache_items: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM cache_items WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select cache item: %w", err)
	}
	return value, true, nil
}

func (s *PostgresStore) SetItem(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cache_items (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, key, value)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && isPgFull(pgErr.Code) {
			return fmt.Errorf("upsert cache item: %w: %s", ErrQuotaExceeded, pgErr.Message)
		}
		return fmt.Errorf("upsert cache item: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cache_items WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete cache item: %w", err)
	}
	return nil
}

func (s *PostgresStore) Keys(ctx context.Context) ([]string, error) {
	return s.keys(ctx, `SELECT key FROM cache_items ORDER BY key`)
}

// KeysWithPrefix implements PrefixLister.
func (s *PostgresStore) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	return s.keys(ctx, `SELECT key FROM cache_items WHERE starts_with(key, $1) ORDER BY key`, prefix)
}

func (s *PostgresStore) keys(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan cache keys: %w", err)
	}
	return keys, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// isPgFull reports SQLSTATEs that mean the server has no room:
// disk_full, out_of_memory, program_limit_exceeded.
func isPgFull(code string) bool {
	switch code {
	case "53100", "53200", "54000":
		return true
	}
	return false
}
