package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const documentExtension = ".json"

// DirectoryBackend keeps each document as <dir>/<name>.json.
type DirectoryBackend struct {
	fs  afero.Fs
	dir string
}

// NewDirectoryBackend creates dir when missing. A nil fs selects the OS
// filesystem.
func NewDirectoryBackend(fsys afero.Fs, dir string) (*DirectoryBackend, error) {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if dir == "" {
		return nil, errors.New("docstore: directory is required")
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	return &DirectoryBackend{fs: fsys, dir: dir}, nil
}

func (b *DirectoryBackend) path(name string) string {
	return filepath.Join(b.dir, name+documentExtension)
}

func (b *DirectoryBackend) Load(_ context.Context, name string) ([]byte, error) {
	data, err := afero.ReadFile(b.fs, b.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrDocumentMissing
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	return data, nil
}

// Save writes a sibling temp file and renames it over the document.
func (b *DirectoryBackend) Save(_ context.Context, name string, data []byte) error {
	target := b.path(name)
	temp := target + ".tmp-" + uuid.NewString()
	if err := afero.WriteFile(b.fs, temp, data, 0o644); err != nil {
		_ = b.fs.Remove(temp)
		return fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	if err := b.fs.Rename(temp, target); err != nil {
		_ = b.fs.Remove(temp)
		return fmt.Errorf("%w: %w", library.ErrUnavailable, err)
	}
	return nil
}
