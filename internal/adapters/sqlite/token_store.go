// Package sqlite persists durable tokens in a single-file SQLite key/value table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sudheendra1210/Citycycle/internal/ports"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// Store is a SQLite-backed key/value table. Use Key to obtain a ports.TokenStore.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := MemoryPath
	if path != MemoryPath {
		// modernc.org/sqlite reads connection settings from _pragma parameters only; they run on
		// every new connection. busy_timeout comes first so the WAL switch waits on a locked file.
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryPath {
		// Every connection to :memory: is a separate database.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Key returns a TokenStore bound to one durable key.
func (s *Store) Key(key string) *TokenStore {
	return &TokenStore{store: s, key: key}
}

// TokenStore implements ports.TokenStore over one row of the kv table.
type TokenStore struct {
	store *Store
	key   string
}

var _ ports.TokenStore = (*TokenStore)(nil)

func (t *TokenStore) Get(ctx context.Context) (string, error) {
	var value string
	err := t.store.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, t.key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ports.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", t.key, err)
	}
	if value == "" {
		return "", ports.ErrNoToken
	}
	return value, nil
}

func (t *TokenStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	_, err := t.store.sqlDB.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		t.key, token, t.store.now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %s: %w", t.key, err)
	}
	return nil
}

func (t *TokenStore) Clear(ctx context.Context) error {
	if _, err := t.store.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, t.key); err != nil {
		return fmt.Errorf("clear %s: %w", t.key, err)
	}
	return nil
}
