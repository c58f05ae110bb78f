package library

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

// memoryStore is a map-backed RecordStore with per-method failure injection.
type memoryStore struct {
	mu         sync.Mutex
	components map[string]Component
	templates  map[string]Template
	trash      map[string]TrashEntry
	versions   []ComponentVersion
	nextID     int64
	folders    FolderSet
	markers    map[string]int64

	failAppendVersion error
	failPutTrash      error
	failList          error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		components: map[string]Component{},
		templates:  map[string]Template{},
		trash:      map[string]TrashEntry{},
		folders:    FolderSet{},
	}
}

func (m *memoryStore) ListComponents(context.Context) ([]Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failList != nil {
		return nil, m.failList
	}
	out := make([]Component, 0, len(m.components))
	for _, component := range m.components {
		out = append(out, component)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) GetComponent(_ context.Context, id string) (Component, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	component, ok := m.components[id]
	if !ok {
		return Component{}, ErrRecordAbsent
	}
	return component, nil
}

func (m *memoryStore) PutComponent(_ context.Context, component Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[component.ID] = component
	return nil
}

func (m *memoryStore) DeleteComponent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.components, id)
	return nil
}

func (m *memoryStore) ListTemplates(context.Context) ([]Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Template, 0, len(m.templates))
	for _, template := range m.templates {
		out = append(out, template)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) GetTemplate(_ context.Context, id string) (Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	template, ok := m.templates[id]
	if !ok {
		return Template{}, ErrRecordAbsent
	}
	return template, nil
}

func (m *memoryStore) PutTemplate(_ context.Context, template Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[template.ID] = template
	return nil
}

func (m *memoryStore) DeleteTemplate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.templates, id)
	return nil
}

func (m *memoryStore) ListTrash(context.Context) ([]TrashEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TrashEntry, 0, len(m.trash))
	for _, entry := range m.trash {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt > out[j].DeletedAt })
	return out, nil
}

func (m *memoryStore) GetTrash(_ context.Context, id string) (TrashEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.trash[id]
	if !ok {
		return TrashEntry{}, ErrRecordAbsent
	}
	return entry, nil
}

func (m *memoryStore) PutTrash(_ context.Context, entry TrashEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPutTrash != nil {
		return m.failPutTrash
	}
	m.trash[entry.ID] = entry
	return nil
}

func (m *memoryStore) DeleteTrash(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trash, id)
	return nil
}

func (m *memoryStore) ClearTrash(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trash = map[string]TrashEntry{}
	return nil
}

func (m *memoryStore) AppendVersion(_ context.Context, version ComponentVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppendVersion != nil {
		return m.failAppendVersion
	}
	m.nextID++
	version.ID = m.nextID
	m.versions = append(m.versions, version)
	return nil
}

func (m *memoryStore) componentVersions(componentID string) []ComponentVersion {
	var matched []ComponentVersion
	for index := len(m.versions) - 1; index >= 0; index-- {
		if m.versions[index].ComponentID == componentID {
			matched = append(matched, m.versions[index])
		}
	}
	return matched
}

func (m *memoryStore) PruneVersions(_ context.Context, componentID string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	retained := map[int64]bool{}
	for index, version := range m.componentVersions(componentID) {
		if index < keep {
			retained[version.ID] = true
		}
	}
	kept := m.versions[:0]
	for _, version := range m.versions {
		if version.ComponentID != componentID || retained[version.ID] {
			kept = append(kept, version)
		}
	}
	m.versions = kept
	return nil
}

func (m *memoryStore) ListVersions(_ context.Context, componentID string, limit int) ([]ComponentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := m.componentVersions(componentID)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *memoryStore) ListFolders(context.Context) (FolderSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(FolderSet, len(m.folders))
	for key, folder := range m.folders {
		out[key] = folder
	}
	return out, nil
}

func (m *memoryStore) ReplaceFolders(_ context.Context, folders FolderSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders = make(FolderSet, len(folders))
	for key, folder := range folders {
		m.folders[key] = folder
	}
	return nil
}

func (m *memoryStore) HasMarker(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.markers[name]
	return ok, nil
}

func (m *memoryStore) PutMarker(_ context.Context, name string, at int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markers == nil {
		m.markers = make(map[string]int64)
	}
	if _, ok := m.markers[name]; !ok {
		m.markers[name] = at
	}
	return nil
}

// steppingClock advances by one millisecond per reading so every mutation gets
// a distinct timestamp.
type steppingClock struct {
	mu      sync.Mutex
	current time.Time
}

func newSteppingClock() *steppingClock {
	return &steppingClock{current: time.UnixMilli(1700000000000).UTC()}
}

func (c *steppingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(time.Millisecond)
	return c.current
}

func newTestService(t *testing.T) (*Service, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	service, err := NewService(ServiceConfig{
		Store: store,
		Clock: newSteppingClock().Now,
		Feed:  NewChangeFeed(),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service, store
}

func mustCreateComponent(t *testing.T, service *Service, input ComponentInput) Component {
	t.Helper()
	component, err := service.CreateComponent(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	return component
}

func int64Pointer(value int64) *int64 {
	return &value
}

func stringPointer(value string) *string {
	return &value
}
