package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/me/blogfront/internal/logging"
)

// FileStorage keeps each key in its own JSON file (<dir>/<key>.json, mode 0600).
type FileStorage struct {
	dir    string
	logger *slog.Logger
}

// NewFileStorage returns a FileStorage rooted at dir. The directory is
// created lazily on the first Set.
func NewFileStorage(dir string, logger *slog.Logger) (*FileStorage, error) {
	if dir == "" {
		return nil, errors.New("file storage: directory is required")
	}
	return &FileStorage{
		dir:    dir,
		logger: logging.OrDiscard(logger).With("component", "storage", "backend", File),
	}, nil
}

// Path returns the file that backs key.
func (s *FileStorage) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileStorage) Get(_ context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	s.logger.Debug("read", "key", key, "bytes", len(data))
	return data, nil
}

// Set writes value to a temporary file and renames it into place so readers
// never observe a partial record.
func (s *FileStorage) Set(_ context.Context, key string, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.Path(key)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	s.logger.Debug("write", "key", key, "bytes", len(value))
	return nil
}

func (s *FileStorage) Remove(_ context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	err := os.Remove(s.Path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	s.logger.Debug("remove", "key", key)
	return nil
}

// Close is a no-op.
func (s *FileStorage) Close() error { return nil }
