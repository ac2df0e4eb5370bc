package blobsink

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	perr "tubesense/internal/platform/errors"
)

// SQLiteSink keeps blobs in a single sqlite file
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, perr.WithField(perr.InvalidArgf("sqlite sink needs a file path"), "url")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "create sqlite dir %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "open sqlite %s", path)
	}
	db.SetMaxOpenConns(1) // single writer

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS blobs (
		key          TEXT PRIMARY KEY,
		content_type TEXT NOT NULL,
		body         BLOB NOT NULL,
		size         INTEGER NOT NULL,
		stored_at    TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "init sqlite schema")
	}
	return &SQLiteSink{db: db}, nil
}

// Put implements Sink
func (s *SQLiteSink) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if err := ValidKey(key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blobs (key, content_type, body, size, stored_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content_type = excluded.content_type,
			body         = excluded.body,
			size         = excluded.size,
			stored_at    = excluded.stored_at`,
		key, contentType, body, len(body), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob put %s", key)
	}
	return nil
}

// Get implements Sink
func (s *SQLiteSink) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM blobs WHERE key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, perr.NotFoundf("blob %s not found", key)
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob get %s", key)
	}
	return body, nil
}

// List implements Sink
func (s *SQLiteSink) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM blobs WHERE substr(key, 1, length(?1)) = ?1 ORDER BY key`, prefix)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob list %q", prefix)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob list scan")
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "blob list %q", prefix)
	}
	return keys, nil
}

// Close implements Sink
func (s *SQLiteSink) Close() error { return s.db.Close() }
