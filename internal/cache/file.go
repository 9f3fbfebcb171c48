package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// DefaultFilePath is where the file store keeps the leads entry.
const DefaultFilePath = "cache/leads_cache.json"

// TempSuffix marks in-flight writes. Files carrying it are never read.
const TempSuffix = ".tmp"

// FileStore keeps the entry in a single file. Writes go to a temp file in the same
// directory which is synced and renamed over the target, so readers only ever see a
// complete entry.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates the parent directory of path and returns a store for it.
func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultFilePath
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cache: create directory: %w", err)
		}
	}
	return &FileStore{path: path}, nil
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

// Dir returns the directory holding the entry and its temp files.
func (s *FileStore) Dir() string {
	return filepath.Dir(s.path)
}

// Read loads and decodes the entry file.
func (s *FileStore) Read(ctx context.Context) (*Entry, error) {
	if s == nil {
		return nil, errors.New("cache: file store not initialised")
	}
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	payload, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read %s: %w", s.path, err)
	}
	return Decode(payload)
}

// Write atomically replaces the entry file.
func (s *FileStore) Write(ctx context.Context, entry Entry) error {
	if s == nil {
		return errors.New("cache: file store not initialised")
	}
	if err := contextErr(ctx); err != nil {
		return err
	}

	payload, err := Encode(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.Dir(), filepath.Base(s.path)+".*"+TempSuffix)
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("cache: sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cache: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("cache: replace %s: %w", s.path, err)
	}
	committed = true
	return nil
}

func contextErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
