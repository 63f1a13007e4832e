package metadata

import (
	"sync"

	"github.com/willp-bl/eidas-mirror-sub004/internal/core/domain"
	"github.com/willp-bl/eidas-mirror-sub004/internal/core/ports"
)

// Cache is the concurrent descriptor cache shared by the static loader and
// the live fetcher. Validity is evaluated by readers against the stored
// ValidUntil; nothing here ever caches an "is valid" boolean.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]domain.CachedEntry
	clock   Clock
}

// NewCache creates an empty cache.
func NewCache(opts ...Option) *Cache {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache{
		entries: make(map[string]domain.CachedEntry),
		clock:   o.clock,
	}
}

// Get returns the cached entry for an entity identifier.
func (c *Cache) Get(entityID string) (domain.CachedEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[entityID]
	return entry, ok
}

// Put stores a descriptor under its identifier. A nil record removes the
// entry; removing an absent entry is a no-op.
func (c *Cache) Put(entityID string, record *domain.DescriptorRecord, origin domain.Origin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if record == nil {
		delete(c.entries, entityID)
		return
	}
	c.entries[entityID] = domain.CachedEntry{
		Record:     record,
		Origin:     origin,
		InsertedAt: c.clock.Now(),
	}
}

// Origin reports how the entry for entityID entered the cache.
func (c *Cache) Origin(entityID string) (domain.Origin, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[entityID]
	if !ok {
		return "", false
	}
	return entry.Origin, true
}

// IDs returns the identifiers currently cached, in no particular order.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.entries))
	for id := range c.entries {
		out = append(out, id)
	}
	return out
}

var _ ports.MetadataCache = (*Cache)(nil)
