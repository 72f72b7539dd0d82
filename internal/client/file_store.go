package client

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore implements StorageClient on the local filesystem, rooted at a
// base directory. Keys may contain slashes; parent directories are created
// on demand.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file-backed store rooted at baseDir
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage directory not configured")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Put writes data under key, creating parent directories as needed.
func (s *FileStore) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Get reads the data stored under key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	path := filepath.Join(s.baseDir, filepath.FromSlash(key))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}
