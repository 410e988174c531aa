package storage

import (
	"errors"
)

// ErrNotFound is returned by GetDocument when no document exists
// under the requested key.
var ErrNotFound = errors.New("document not found")

// Storage persists the JSON documents produced by a scraper run. Keys
// are slash separated paths ("routes/v2/muni.json") and match the
// object keys used for bucket uploads, so a filesystem store can be
// inspected with the same paths that would appear in S3.
type Storage interface {
	// Writes a document. A document already stored under the same
	// key is replaced.
	PutDocument(key string, body []byte) error

	// Retrieves a document by key. Returns ErrNotFound if no
	// document exists under the key.
	GetDocument(key string) ([]byte, error)

	Close() error
}
