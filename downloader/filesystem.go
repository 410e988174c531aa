package downloader

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Filesystem caches downloaded feeds in a directory. Each feed is
// written as <sha256(url)>.zip next to an index.json mapping URLs to
// their cache entries, so a cached zip can be found and inspected by
// hand.
type Filesystem struct {
	dir     string
	records map[string]fsRecord
	mu      sync.Mutex
}

type fsRecord struct {
	File        string    `json:"file"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

func NewFilesystem(dir string) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	fs := &Filesystem{dir: dir, records: map[string]fsRecord{}}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *Filesystem) Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if options.Cache {
		record, found := f.records[url]
		if found && time.Since(record.RetrievedAt) < options.CacheTTL {
			body, err := os.ReadFile(filepath.Join(f.dir, record.File))
			if err == nil {
				return body, nil
			}
			// Index entry without a readable file. Re-download.
		}
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	if options.Cache {
		name := fmt.Sprintf("%x.zip", sha256.Sum256([]byte(url)))
		if err := os.WriteFile(filepath.Join(f.dir, name), body, 0644); err != nil {
			return nil, fmt.Errorf("caching feed: %w", err)
		}

		f.records[url] = fsRecord{File: name, RetrievedAt: time.Now().UTC()}
		if err := f.save(); err != nil {
			return nil, fmt.Errorf("saving index: %w", err)
		}
	}

	return body, nil
}

func (f *Filesystem) load() error {
	buf, err := os.ReadFile(filepath.Join(f.dir, "index.json"))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading index: %w", err)
	}
	if err := json.Unmarshal(buf, &f.records); err != nil {
		return fmt.Errorf("unmarshalling index: %w", err)
	}
	return nil
}

func (f *Filesystem) save() error {
	buf, err := json.Marshal(f.records)
	if err != nil {
		return fmt.Errorf("marshalling index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, "index.json"), buf, 0644); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}
	return nil
}
