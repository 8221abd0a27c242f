package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/supermanko1102/oflow-monorepo-sub001/internal/errors"
)

// FileKV stores one file per key under a directory.
//
// Writes go to a temp file in the same directory and are renamed into place,
// so a crash never leaves a half-written value behind.
type FileKV struct {
	dir string
	mu  sync.Mutex
}

// NewFileKV creates the directory (0700) if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrCodeStoreBackend, "storage directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreBackend, "failed to create storage directory", err)
	}
	return &FileKV{dir: dir}, nil
}

// Dir returns the backing directory.
func (f *FileKV) Dir() string {
	return f.dir
}

func (f *FileKV) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// GetItem returns the value stored at key.
func (f *FileKV) GetItem(ctx context.Context, key string) (string, bool, error) {
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, errors.Wrap(errors.ErrCodeStoreReadFailed, fmt.Sprintf("failed to read %s", key), err)
	}
	return string(data), true, nil
}

// SetItem atomically replaces the value at key.
func (f *FileKV) SetItem(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, "."+key+"-*.tmp")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, "failed to set permissions", err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, fmt.Sprintf("failed to write %s", key), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, fmt.Sprintf("failed to sync %s", key), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, fmt.Sprintf("failed to close %s", key), err)
	}

	if err := os.Rename(tmpName, f.path(key)); err != nil {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, fmt.Sprintf("failed to replace %s", key), err)
	}
	return nil
}

// RemoveItem deletes key.
func (f *FileKV) RemoveItem(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return errors.Wrap(errors.ErrCodeStoreWriteFailed, fmt.Sprintf("failed to remove %s", key), err)
	}
	return nil
}
