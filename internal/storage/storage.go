// Package storage provides durable key/value storage for client-side state.
// It plays the role browser local storage plays for a web front end: a few
// small records addressed by fixed names.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// Storage is a durable key/value store.
type Storage interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Close releases resources held by the store.
	Close() error
}

// Backend names accepted by Open.
const (
	File   = "file"
	SQLite = "sqlite"
	Memory = "memory"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// checkKey rejects keys that cannot safely name a file or row.
func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("storage: invalid key %q", key)
	}
	return nil
}

// Open returns the storage backend named by kind. path is a directory for
// "file" and a database path for "sqlite"; it is ignored for "memory".
func Open(ctx context.Context, kind, path string, logger *slog.Logger) (Storage, error) {
	switch kind {
	case File, "":
		return NewFileStorage(path, logger)
	case SQLite:
		st, err := NewSQLiteStorage(path, logger)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrate %s: %w", path, err)
		}
		return st, nil
	case Memory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
