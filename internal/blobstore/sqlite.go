package blobstore

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
CREATE TABLE IF NOT EXISTS cache_blobs (
	key        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	written_at INTEGER NOT NULL
)`

// SQLite stores blobs in a single table keyed by path.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer keeps modernc.org/sqlite from returning SQLITE_BUSY under fan-out.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// SetClock overrides the write-time source.
func (s *SQLite) SetClock(now func() time.Time) { s.now = now }

// Get returns the blob for key or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, key string) (*Blob, error) {
	var (
		body      []byte
		writtenAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT body, written_at FROM cache_blobs WHERE key = ?`, key,
	).Scan(&body, &writtenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite get %s: %w", key, err)
	}
	return &Blob{Body: body, LastModified: time.Unix(0, writtenAt).UTC()}, nil
}

// Put upserts body under key, stamping the current time.
func (s *SQLite) Put(ctx context.Context, key string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_blobs (key, body, written_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, written_at = excluded.written_at`,
		key, body, s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite put %s: %w", key, err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}
