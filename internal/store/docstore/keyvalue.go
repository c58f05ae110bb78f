package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/spf13/afero"
)

// KeyPrefix namespaces documents inside a key-value store, matching the keys
// the browser build used in localStorage.
const KeyPrefix = "ztb-"

// KeyValueBackend keeps every document under a prefixed key of one string map,
// optionally snapshotted to a single JSON file after each save. With an empty
// path it lives in memory only.
type KeyValueBackend struct {
	fs     afero.Fs
	path   string
	mu     sync.Mutex
	values map[string]string
}

// NewKeyValueBackend loads the snapshot at path when it exists. An unreadable
// snapshot starts an empty store rather than failing.
func NewKeyValueBackend(fsys afero.Fs, path string) (*KeyValueBackend, error) {
	backend := &KeyValueBackend{fs: fsys, path: path, values: map[string]string{}}
	if path == "" {
		return backend, nil
	}
	if backend.fs == nil {
		backend.fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(backend.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return backend, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	if err := json.Unmarshal(data, &backend.values); err != nil || backend.values == nil {
		backend.values = map[string]string{}
	}
	return backend, nil
}

// NewMemoryBackend returns a key-value backend with no snapshot file.
func NewMemoryBackend() *KeyValueBackend {
	backend, _ := NewKeyValueBackend(nil, "")
	return backend
}

func (b *KeyValueBackend) Load(_ context.Context, name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	value, ok := b.values[KeyPrefix+name]
	if !ok {
		return nil, ErrDocumentMissing
	}
	return []byte(value), nil
}

func (b *KeyValueBackend) Save(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := KeyPrefix + name
	previous, existed := b.values[key]
	b.values[key] = string(data)
	if b.path == "" {
		return nil
	}
	if err := b.snapshot(); err != nil {
		if existed {
			b.values[key] = previous
		} else {
			delete(b.values, key)
		}
		return err
	}
	return nil
}

// Set stores a raw value under key, bypassing the prefix. It mirrors writing
// localStorage directly and exists for seeding and tests.
func (b *KeyValueBackend) Set(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

func (b *KeyValueBackend) snapshot() error {
	data, err := json.Marshal(b.values)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	temp := b.path + ".tmp"
	if err := afero.WriteFile(b.fs, temp, data, 0o644); err != nil {
		return fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	if err := b.fs.Rename(temp, b.path); err != nil {
		_ = b.fs.Remove(temp)
		return fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	return nil
}
