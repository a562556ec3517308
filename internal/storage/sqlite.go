package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const createArtifactsTable = `
CREATE TABLE IF NOT EXISTS artifacts (
	key          TEXT PRIMARY KEY,
	content      BLOB NOT NULL,
	content_type TEXT NOT NULL,
	size         INTEGER NOT NULL,
	sha256       TEXT NOT NULL,
	updated_at   DATETIME NOT NULL
)`

// SQLiteStore keeps objects as rows in a single SQLite table
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) the database at path
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Open database with WAL mode so readers (e.g. a publishing job) don't block the pipeline
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(createArtifactsTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating artifacts table: %w", err)
	}

	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

// Put upserts the object row for key
func (s *SQLiteStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (key, content, content_type, size, sha256, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			content = excluded.content,
			content_type = excluded.content_type,
			size = excluded.size,
			sha256 = excluded.sha256,
			updated_at = excluded.updated_at
	`, key, data, contentType, len(data), hex.EncodeToString(sum[:]), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storing artifact %s: %w", key, err)
	}

	s.logger.Debug("Object stored", "key", key, "bytes", len(data), "content_type", contentType)
	return nil
}

// Get returns the object stored at key
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT content FROM artifacts WHERE key = ?", key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("reading artifact %s: %w", key, err)
	}
	return data, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
