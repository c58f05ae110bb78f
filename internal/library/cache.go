package library

import (
	"context"
	"sync"
)

// Cache memoizes component and folder listings for one process. Entries are
// dropped synchronously when the service publishes a change touching them, so
// a read issued after a mutation returns always observes it.
//
// Invalidation only covers mutations made through the same ChangeFeed; a store
// shared with other processes needs the cache disabled.
type Cache struct {
	service *Service

	mu               sync.Mutex
	generation       uint64
	components       []Component
	componentsLoaded bool
	folders          FolderSet
	foldersLoaded    bool

	listening     bool
	stopListening func()
	closeOnce     sync.Once
}

// NewCache wires a cache to the service change feed. A service without a feed
// yields a cache that never holds data.
func NewCache(service *Service) *Cache {
	cache := &Cache{service: service}
	if feed := service.Feed(); feed != nil {
		cache.stopListening = feed.Listen(cache.handleChange)
		cache.listening = true
	}
	return cache
}

// Close detaches the cache from the change feed.
func (c *Cache) Close() {
	if c == nil || c.stopListening == nil {
		return
	}
	c.closeOnce.Do(c.stopListening)
	c.mu.Lock()
	c.listening = false
	c.components, c.componentsLoaded = nil, false
	c.folders, c.foldersLoaded = nil, false
	c.mu.Unlock()
}

func (c *Cache) handleChange(event ChangeEvent) {
	c.Invalidate(event.Kinds...)
}

// Invalidate drops the cached entries of the given kinds.
func (c *Cache) Invalidate(kinds ...ChangeKind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	for _, kind := range kinds {
		switch kind {
		case ChangeKindComponents:
			c.components = nil
			c.componentsLoaded = false
		case ChangeKindFolders:
			c.folders = nil
			c.foldersLoaded = false
		}
	}
}

// Components returns the live components, loading them on first use.
func (c *Cache) Components(ctx context.Context) ([]Component, error) {
	if c == nil {
		return nil, errNilCache
	}
	c.mu.Lock()
	if c.componentsLoaded {
		cached := append([]Component(nil), c.components...)
		c.mu.Unlock()
		return cached, nil
	}
	generation := c.generation
	c.mu.Unlock()

	components, err := c.service.ListComponents(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	// A mutation that landed while loading makes this result unsafe to keep.
	if c.listening && c.generation == generation {
		c.components = append([]Component(nil), components...)
		c.componentsLoaded = true
	}
	c.mu.Unlock()
	return components, nil
}

// Folders returns the folder set, loading it on first use.
func (c *Cache) Folders(ctx context.Context) (FolderSet, error) {
	if c == nil {
		return nil, errNilCache
	}
	c.mu.Lock()
	if c.foldersLoaded {
		cached := make(FolderSet, len(c.folders))
		for key, folder := range c.folders {
			cached[key] = folder
		}
		c.mu.Unlock()
		return cached, nil
	}
	generation := c.generation
	c.mu.Unlock()

	folders, err := c.service.ListFolders(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.listening && c.generation == generation {
		c.folders = make(FolderSet, len(folders))
		for key, folder := range folders {
			c.folders[key] = folder
		}
		c.foldersLoaded = true
	}
	c.mu.Unlock()
	return folders, nil
}

// RenderTemplate assembles a template against the cached component listing.
func (c *Cache) RenderTemplate(ctx context.Context, id string) (string, error) {
	if c == nil {
		return "", errNilCache
	}
	template, err := c.service.GetTemplate(ctx, id)
	if err != nil {
		return "", err
	}
	components, err := c.Components(ctx)
	if err != nil {
		return "", err
	}
	return AssembleHTML(template, indexComponents(components)), nil
}
