package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"streamBot/internal/domain"
)

// Store is the persistence collaborator for command handlers: named JSON
// blobs in a single sqlite table. Handlers own the shape of their values.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: empty db path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: creating dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS kv (
	name TEXT NOT NULL PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: migrate kv: %w", err)
	}
	return nil
}

// Load unmarshals the blob stored under name into dest. Returns
// domain.ErrNotFound when the name has never been saved.
func (s *Store) Load(ctx context.Context, name string, dest any) error {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: %s: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("sqlite: load %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("sqlite: decode %s: %w", name, err)
	}
	return nil
}

// Save upserts value under name as JSON.
func (s *Store) Save(ctx context.Context, name string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("sqlite: encode %s: %w", name, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO kv (name, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		name, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("sqlite: save %s: %w", name, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
