package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig selects where the database lives. The zero value means
// in-memory, which is what tests and one-shot runs want.
type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

// SQLiteStorage keeps documents in a single sqlite table. The default
// backend for local runs.
type SQLiteStorage struct {
	SQLiteConfig

	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	var c SQLiteConfig
	if len(cfg) > 0 {
		c = cfg[0]
	}

	dsn := ":memory:"
	if c.OnDisk {
		dsn = filepath.Join(c.Directory, "documents.db")
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dsn, err)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS document (
    key TEXT NOT NULL,
    body BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (key)
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating document table: %w", err)
	}

	return &SQLiteStorage{SQLiteConfig: c, db: db}, nil
}

func (s *SQLiteStorage) PutDocument(key string, body []byte) error {
	_, err := s.db.Exec(`
INSERT INTO document (key, body, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (key) DO UPDATE SET
    body = excluded.body,
    updated_at = excluded.updated_at
`, key, body)
	if err != nil {
		return fmt.Errorf("writing document %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) GetDocument(key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(`
SELECT body
FROM document
WHERE key = ?
`, key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", key, err)
	}
	return body, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
