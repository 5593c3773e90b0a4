// Package store provides the local key-value stores that keep session state
// across restarts.
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is a string key-value store. Get reports false for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Backends lists the accepted backend names.
var Backends = []string{BackendFile, BackendBadger, BackendSQLite, BackendMemory}

// ValidBackend reports whether name is one of Backends.
func ValidBackend(name string) bool {
	for _, b := range Backends {
		if b == name {
			return true
		}
	}
	return false
}

// Recoverer is implemented by backends that can discard unreadable state on open.
type Recoverer interface {
	Recovered() (aside string, err error)
}

// Open creates the store for backend at path. The parent directory is created if needed.
func Open(backend, path string) (Store, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = BackendFile
	}
	if backend != BackendMemory {
		if path == "" {
			return nil, fmt.Errorf("store %s: path is required", backend)
		}
		dir := path
		if backend != BackendBadger {
			dir = filepath.Dir(path)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store %s: create directory: %w", backend, err)
		}
	}

	switch backend {
	case BackendFile:
		return NewFileStore(path)
	case BackendBadger:
		return NewBadgerStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}
