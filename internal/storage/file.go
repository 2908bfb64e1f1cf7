package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/conceptforge/conceptforge/internal/metaproject"
)

// FileStore persists the configuration as one JSON document. Save writes a
// sibling temp file and renames it over the target so a crash mid-write
// never leaves a torn snapshot behind.
type FileStore struct {
	path string
}

// NewFileStore builds a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads and decodes the snapshot file.
func (s *FileStore) Load(_ context.Context) (*metaproject.ServerConfiguration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, s.path)
		}
		return nil, fmt.Errorf("storage: read snapshot: %w", err)
	}
	var cfg metaproject.ServerConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("storage: decode snapshot %s: %w", s.path, err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save encodes cfg and atomically replaces the snapshot file.
func (s *FileStore) Save(_ context.Context, cfg *metaproject.ServerConfiguration) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("storage: replace snapshot: %w", err)
	}
	return nil
}
