// Package docstore implements library.RecordStore as one JSON document per
// record kind, persisted through a pluggable Backend: a directory on disk, a
// local key-value file or an S3 bucket.
package docstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/MarcoPoloResearchLab/snippets/backend/internal/library"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrDocumentMissing is returned by a Backend when a document was never saved.
var ErrDocumentMissing = errors.New("docstore: document missing")

// Backend reads and atomically replaces whole documents by name.
type Backend interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
}

// Store serializes every read-modify-write cycle on one mutex. Documents are
// small; the store rewrites a whole document per mutation. A document that
// fails to decode reads as empty, and its raw bytes are copied to
// <name>.corrupt-<uuid> before anything can overwrite it.
type Store struct {
	backend Backend
	logger  *zap.Logger
	mu      sync.Mutex

	// preserved holds malformed documents already copied aside.
	preserved map[string]bool
}

var _ library.RecordStore = (*Store)(nil)

func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger, preserved: make(map[string]bool)}
}

// preserveMalformed copies an undecodable document aside once. A failed copy
// is returned so no mutation can replace the only copy of the data.
func (s *Store) preserveMalformed(ctx context.Context, name string, data []byte, decodeErr error) error {
	if s.preserved[name] {
		return nil
	}
	copyName := name + corruptSuffix + uuid.NewString()
	if err := s.backend.Save(ctx, copyName, data); err != nil {
		s.logger.Error("malformed document could not be preserved",
			zap.String("document", name),
			zap.Error(err))
		return err
	}
	s.preserved[name] = true
	s.logger.Warn("malformed document read as empty",
		zap.String("document", name),
		zap.String("preserved_as", copyName),
		zap.Error(decodeErr))
	return nil
}

func loadItems[T any](ctx context.Context, s *Store, name string) ([]T, error) {
	data, err := s.backend.Load(ctx, name)
	if errors.Is(err, ErrDocumentMissing) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := decodeItems[T](data)
	if err != nil {
		if preserveErr := s.preserveMalformed(ctx, name, data, err); preserveErr != nil {
			return nil, preserveErr
		}
		return nil, nil
	}
	return items, nil
}

func saveItems[T any](ctx context.Context, s *Store, name string, items []T) error {
	data, err := encodeItems(items)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, name, data); err != nil {
		return err
	}
	delete(s.preserved, name)
	return nil
}

// upsert replaces the item with the same key or appends a new one.
func upsert[T any](items []T, item T, key func(T) string) []T {
	for index := range items {
		if key(items[index]) == key(item) {
			items[index] = item
			return items
		}
	}
	return append(items, item)
}

func without[T any](items []T, id string, key func(T) string) ([]T, bool) {
	kept := items[:0]
	removed := false
	for _, item := range items {
		if key(item) == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	return kept, removed
}

func componentKey(component library.Component) string { return component.ID }
func templateKey(template library.Template) string    { return template.ID }
func trashKey(entry library.TrashEntry) string        { return entry.ID }

func (s *Store) ListComponents(ctx context.Context) ([]library.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	components, err := loadItems[library.Component](ctx, s, documentComponents)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(components, func(i, j int) bool { return components[i].Name < components[j].Name })
	return components, nil
}

func (s *Store) GetComponent(ctx context.Context, id string) (library.Component, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	components, err := loadItems[library.Component](ctx, s, documentComponents)
	if err != nil {
		return library.Component{}, err
	}
	for _, component := range components {
		if component.ID == id {
			return component, nil
		}
	}
	return library.Component{}, library.ErrRecordAbsent
}

func (s *Store) PutComponent(ctx context.Context, component library.Component) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	components, err := loadItems[library.Component](ctx, s, documentComponents)
	if err != nil {
		return err
	}
	return saveItems(ctx, s, documentComponents, upsert(components, component, componentKey))
}

func (s *Store) DeleteComponent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	components, err := loadItems[library.Component](ctx, s, documentComponents)
	if err != nil {
		return err
	}
	remaining, removed := without(components, id, componentKey)
	if !removed {
		return nil
	}
	return saveItems(ctx, s, documentComponents, remaining)
}

func (s *Store) ListTemplates(ctx context.Context) ([]library.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	templates, err := loadItems[library.Template](ctx, s, documentTemplates)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(templates, func(i, j int) bool { return templates[i].Name < templates[j].Name })
	return templates, nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (library.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	templates, err := loadItems[library.Template](ctx, s, documentTemplates)
	if err != nil {
		return library.Template{}, err
	}
	for _, template := range templates {
		if template.ID == id {
			return template, nil
		}
	}
	return library.Template{}, library.ErrRecordAbsent
}

func (s *Store) PutTemplate(ctx context.Context, template library.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	templates, err := loadItems[library.Template](ctx, s, documentTemplates)
	if err != nil {
		return err
	}
	return saveItems(ctx, s, documentTemplates, upsert(templates, template, templateKey))
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	templates, err := loadItems[library.Template](ctx, s, documentTemplates)
	if err != nil {
		return err
	}
	remaining, removed := without(templates, id, templateKey)
	if !removed {
		return nil
	}
	return saveItems(ctx, s, documentTemplates, remaining)
}

func (s *Store) ListTrash(ctx context.Context) ([]library.TrashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := loadItems[library.TrashEntry](ctx, s, documentTrash)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].DeletedAt > entries[j].DeletedAt })
	return entries, nil
}

func (s *Store) GetTrash(ctx context.Context, id string) (library.TrashEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := loadItems[library.TrashEntry](ctx, s, documentTrash)
	if err != nil {
		return library.TrashEntry{}, err
	}
	for _, entry := range entries {
		if entry.ID == id {
			return entry, nil
		}
	}
	return library.TrashEntry{}, library.ErrRecordAbsent
}

func (s *Store) PutTrash(ctx context.Context, entry library.TrashEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := loadItems[library.TrashEntry](ctx, s, documentTrash)
	if err != nil {
		return err
	}
	return saveItems(ctx, s, documentTrash, upsert(entries, entry, trashKey))
}

func (s *Store) DeleteTrash(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := loadItems[library.TrashEntry](ctx, s, documentTrash)
	if err != nil {
		return err
	}
	remaining, removed := without(entries, id, trashKey)
	if !removed {
		return nil
	}
	return saveItems(ctx, s, documentTrash, remaining)
}

func (s *Store) ClearTrash(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveItems(ctx, s, documentTrash, []library.TrashEntry{})
}

func (s *Store) AppendVersion(ctx context.Context, version library.ComponentVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, err := loadItems[library.ComponentVersion](ctx, s, documentVersions)
	if err != nil {
		return err
	}
	var lastID int64
	for _, existing := range versions {
		if existing.ID > lastID {
			lastID = existing.ID
		}
	}
	version.ID = lastID + 1
	return saveItems(ctx, s, documentVersions, append(versions, version))
}

func (s *Store) PruneVersions(ctx context.Context, componentID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, err := loadItems[library.ComponentVersion](ctx, s, documentVersions)
	if err != nil {
		return err
	}
	retained := make(map[int64]bool)
	for index, version := range newestFirst(versions, componentID) {
		if index >= keep {
			break
		}
		retained[version.ID] = true
	}
	kept := make([]library.ComponentVersion, 0, len(versions))
	for _, version := range versions {
		if version.ComponentID != componentID || retained[version.ID] {
			kept = append(kept, version)
		}
	}
	if len(kept) == len(versions) {
		return nil
	}
	return saveItems(ctx, s, documentVersions, kept)
}

func (s *Store) ListVersions(ctx context.Context, componentID string, limit int) ([]library.ComponentVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions, err := loadItems[library.ComponentVersion](ctx, s, documentVersions)
	if err != nil {
		return nil, err
	}
	matched := newestFirst(versions, componentID)
	if limit >= 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func newestFirst(versions []library.ComponentVersion, componentID string) []library.ComponentVersion {
	matched := make([]library.ComponentVersion, 0)
	for _, version := range versions {
		if version.ComponentID == componentID {
			matched = append(matched, version)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt != matched[j].CreatedAt {
			return matched[i].CreatedAt > matched[j].CreatedAt
		}
		return matched[i].ID > matched[j].ID
	})
	return matched
}

func (s *Store) ListFolders(ctx context.Context) (library.FolderSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.backend.Load(ctx, documentFolders)
	if errors.Is(err, ErrDocumentMissing) {
		return library.FolderSet{}, nil
	}
	if err != nil {
		return nil, err
	}
	folders, err := decodeFolders(data)
	if err != nil {
		if preserveErr := s.preserveMalformed(ctx, documentFolders, data, err); preserveErr != nil {
			return nil, preserveErr
		}
		return library.FolderSet{}, nil
	}
	return folders, nil
}

// ReplaceFolders writes the new set as one document; backends replace documents
// atomically, so a failed save leaves the previous set readable.
func (s *Store) ReplaceFolders(ctx context.Context, folders library.FolderSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// A malformed folders document is never loaded by a replace, so it is read
	// here to be preserved first.
	current, err := s.backend.Load(ctx, documentFolders)
	if err != nil && !errors.Is(err, ErrDocumentMissing) {
		return err
	}
	if err == nil {
		if _, decodeErr := decodeFolders(current); decodeErr != nil {
			if preserveErr := s.preserveMalformed(ctx, documentFolders, current, decodeErr); preserveErr != nil {
				return preserveErr
			}
		}
	}
	data, err := encodeFolders(folders)
	if err != nil {
		return err
	}
	if err := s.backend.Save(ctx, documentFolders, data); err != nil {
		return err
	}
	delete(s.preserved, documentFolders)
	return nil
}

func (s *Store) HasMarker(ctx context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	markers, err := loadItems[marker](ctx, s, documentMarkers)
	if err != nil {
		return false, err
	}
	for _, existing := range markers {
		if existing.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) PutMarker(ctx context.Context, name string, at int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	markers, err := loadItems[marker](ctx, s, documentMarkers)
	if err != nil {
		return err
	}
	for _, existing := range markers {
		if existing.Name == name {
			return nil
		}
	}
	return saveItems(ctx, s, documentMarkers, append(markers, marker{Name: name, CreatedAt: at}))
}
