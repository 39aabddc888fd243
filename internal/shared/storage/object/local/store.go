package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"justicebench/internal/shared/storage/object"
)

// Store keeps archived uploads under a directory on local disk.
type Store struct {
	baseDir string
}

// New creates a local object store rooted at baseDir.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Save(ctx context.Context, namespace string, fileName string, r io.Reader) (object.Document, error) {
	key, err := object.NewKey(namespace, fileName)
	if err != nil {
		return object.Document{}, err
	}
	if err := ctx.Err(); err != nil {
		return object.Document{}, err
	}
	meter, err := object.NewMeter(r)
	if err != nil {
		return object.Document{}, err
	}

	full := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return object.Document{}, fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return object.Document{}, fmt.Errorf("create %s: %w", key, err)
	}
	if _, err := io.Copy(f, meter); err != nil {
		f.Close()
		os.Remove(full)
		return object.Document{}, fmt.Errorf("write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return object.Document{}, fmt.Errorf("close %s: %w", key, err)
	}
	return meter.Document(key), nil
}

func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	full, err := s.resolve(ctx, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", object.ErrNotFound, key)
	}
	return f, err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	full, err := s.resolve(ctx, key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", object.ErrNotFound, key)
		}
		return err
	}
	// Drop the namespace directory once its last upload is gone.
	_ = os.Remove(filepath.Dir(full))
	return nil
}

func (s *Store) resolve(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := object.CheckKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(key)), nil
}

var _ object.ObjectStore = (*Store)(nil)
