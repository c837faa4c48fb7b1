package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore implements ObjectStore on the local filesystem. Blobs are stored
// as flat files under a single directory; the returned storage reference is
// the file name, not the full path, so the directory can move.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the blob directory if needed and returns a DiskStore.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Put writes data under key. The write goes to a temp file first and is
// renamed into place so a crash never leaves a partial blob behind the ref.
func (s *DiskStore) Put(_ context.Context, key string, data []byte) (string, error) {
	name := filepath.Base(key)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("store blob: %w", err)
	}
	return name, nil
}

// Get reads the blob behind ref.
func (s *DiskStore) Get(_ context.Context, ref string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(ref)))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", ref, err)
	}
	return data, nil
}
