package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteBackend keeps every object as one row of the memories table. The
// object column holds the persisted JSON document unchanged.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	// Ensure directories exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writers are serialized on a single connection.
	db.SetMaxOpenConns(1)

	backend := &SQLiteBackend{db: db}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return backend, nil
}

func (b *SQLiteBackend) initSchema() error {
	queries := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS memories (
			category TEXT NOT NULL,
			key TEXT NOT NULL,
			object TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (category, key)
		);`,
	}

	for _, query := range queries {
		if _, err := b.db.Exec(query); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (b *SQLiteBackend) Read(ctx context.Context, category, key string) ([]byte, bool, error) {
	query := `SELECT object FROM memories WHERE category = ? AND key = ?`
	row := b.db.QueryRowContext(ctx, query, category, key)

	var object string
	if err := row.Scan(&object); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return []byte(object), true, nil
}

func (b *SQLiteBackend) Write(ctx context.Context, category, key string, raw []byte) error {
	query := `INSERT INTO memories (category, key, object, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(category, key) DO UPDATE SET object = excluded.object, updated_at = excluded.updated_at`
	_, err := b.db.ExecContext(ctx, query, category, key, string(raw))
	return err
}

func (b *SQLiteBackend) Remove(ctx context.Context, category, key string) error {
	query := `DELETE FROM memories WHERE category = ? AND key = ?`
	_, err := b.db.ExecContext(ctx, query, category, key)
	return err
}

func (b *SQLiteBackend) Keys(ctx context.Context, category string) ([]string, error) {
	return b.strings(ctx, `SELECT key FROM memories WHERE category = ?`, category)
}

func (b *SQLiteBackend) Categories(ctx context.Context) ([]string, error) {
	return b.strings(ctx, `SELECT DISTINCT category FROM memories`)
}

func (b *SQLiteBackend) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
