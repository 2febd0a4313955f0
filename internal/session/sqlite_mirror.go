package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session_mirror (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteMirror stores the record in a single-row SQLite table.
type SQLiteMirror struct {
	db *sql.DB
}

// OpenSQLiteMirror opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database.
func OpenSQLiteMirror(ctx context.Context, path string) (*SQLiteMirror, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create session dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session table: %w", err)
	}
	return &SQLiteMirror{db: db}, nil
}

func (m *SQLiteMirror) Close() error {
	return m.db.Close()
}

func (m *SQLiteMirror) Load(ctx context.Context) (Record, error) {
	var data []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT value FROM session_mirror WHERE key = ?`, StorageKey,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNoRecord
	}
	if err != nil {
		return Record{}, fmt.Errorf("load session row: %w", err)
	}
	return DecodeRecord(data)
}

func (m *SQLiteMirror) Save(ctx context.Context, r Record) error {
	data, err := EncodeRecord(r)
	if err != nil {
		return err
	}
	_, err = m.db.ExecContext(ctx, `
		INSERT INTO session_mirror (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		StorageKey, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session row: %w", err)
	}
	return nil
}

func (m *SQLiteMirror) Clear(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `DELETE FROM session_mirror WHERE key = ?`, StorageKey); err != nil {
		return fmt.Errorf("clear session row: %w", err)
	}
	return nil
}

// putRaw stores bytes verbatim under the session key.
func (m *SQLiteMirror) putRaw(ctx context.Context, data []byte) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO session_mirror (key, value, updated_at) VALUES (?, ?, ?)`,
		StorageKey, data, time.Now().Unix(),
	)
	return err
}
