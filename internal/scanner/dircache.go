package scanner

import (
	"context"
	"sync"

	"github.com/rjwaters/cineshelf/internal/models"
)

// PersistentStore is an optional second cache tier behind the in-memory
// directory cache. Entries carry their own mtime, so the same invalidation
// rule applies regardless of tier.
type PersistentStore interface {
	GetDir(ctx context.Context, dir string) (*models.DirCacheEntry, bool)
	PutDir(ctx context.Context, dir string, entry models.DirCacheEntry)
	DeleteDir(ctx context.Context, dir string)
}

// DirCache maps directory paths to their last-listed state. Concurrent
// sibling-directory scans touch disjoint keys; the map itself is guarded.
type DirCache struct {
	mu      sync.RWMutex
	entries map[string]models.DirCacheEntry
	store   PersistentStore // nil when persistence is disabled
}

func NewDirCache(store PersistentStore) *DirCache {
	return &DirCache{
		entries: make(map[string]models.DirCacheEntry),
		store:   store,
	}
}

func (c *DirCache) Get(ctx context.Context, dir string) (models.DirCacheEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[dir]
	c.mu.RUnlock()
	if ok {
		return entry, true
	}

	if c.store != nil {
		if stored, ok := c.store.GetDir(ctx, dir); ok {
			c.mu.Lock()
			c.entries[dir] = *stored
			c.mu.Unlock()
			return *stored, true
		}
	}
	return models.DirCacheEntry{}, false
}

func (c *DirCache) Put(ctx context.Context, dir string, entry models.DirCacheEntry) {
	c.mu.Lock()
	c.entries[dir] = entry
	c.mu.Unlock()

	if c.store != nil {
		c.store.PutDir(ctx, dir, entry)
	}
}

// Invalidate drops a single directory's entry, forcing a re-list on the
// next scan. Used by the filesystem watcher.
func (c *DirCache) Invalidate(ctx context.Context, dir string) {
	c.mu.Lock()
	delete(c.entries, dir)
	c.mu.Unlock()

	if c.store != nil {
		c.store.DeleteDir(ctx, dir)
	}
}

func (c *DirCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
