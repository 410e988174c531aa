package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PSQLStorage keeps documents in a Postgres table, for deployments
// where several scraper instances share one document store.
type PSQLStorage struct {
	db *sql.DB
}

// NewPSQLStorage connects to Postgres and ensures the document table
// exists. With reset set, an existing table is dropped first. Tests
// use that to start from a clean slate.
func NewPSQLStorage(connStr string, reset bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging db: %w", err)
	}

	if reset {
		_, err = db.Exec(`DROP TABLE IF EXISTS document;`)
		if err != nil {
			return nil, fmt.Errorf("dropping document table: %w", err)
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS document (
    key TEXT NOT NULL,
    body BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (key)
);`)
	if err != nil {
		return nil, fmt.Errorf("creating document table: %w", err)
	}

	return &PSQLStorage{db: db}, nil
}

func (s *PSQLStorage) PutDocument(key string, body []byte) error {
	_, err := s.db.Exec(`
INSERT INTO document (key, body, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET
    body = excluded.body,
    updated_at = excluded.updated_at
`, key, body)
	if err != nil {
		return fmt.Errorf("writing document %s: %w", key, err)
	}
	return nil
}

func (s *PSQLStorage) GetDocument(key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRow(`
SELECT body
FROM document
WHERE key = $1
`, key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", key, err)
	}
	return body, nil
}

func (s *PSQLStorage) Close() error {
	return s.db.Close()
}
