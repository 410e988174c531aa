package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStorage lays documents out as plain files under a root
// directory, one file per key. The directory tree mirrors the key
// structure, e.g. "routes/v2/muni.json" becomes
// <root>/routes/v2/muni.json.
type FilesystemStorage struct {
	root string
}

func NewFilesystemStorage(root string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &FilesystemStorage{root: root}, nil
}

func (s *FilesystemStorage) PutDocument(key string, body []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", key, err)
	}

	if err := os.WriteFile(path, body, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}

	return nil
}

func (s *FilesystemStorage) GetDocument(key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	return body, nil
}

func (s *FilesystemStorage) Close() error {
	return nil
}

func (s *FilesystemStorage) path(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("bad document key: %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
