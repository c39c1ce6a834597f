package classifier

import (
	"maps"
	"sync"

	"github.com/vietddude/mintwatch/internal/core/domain"
)

// Cache remembers the verdict of method selectors already classified.
// A selector lives in at most one partition.
type Cache struct {
	mu      sync.RWMutex
	include map[string]string // selector -> last seen tx hash
	exclude map[string]string
	version uint64
}

// NewCache creates an empty method cache.
func NewCache() *Cache {
	return &Cache{
		include: make(map[string]string),
		exclude: make(map[string]string),
	}
}

// Load replaces the cache contents with a persisted snapshot.
func (c *Cache) Load(snapshot domain.MethodCache) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.include = make(map[string]string, len(snapshot.Include))
	c.exclude = make(map[string]string, len(snapshot.Exclude))
	for sel, hash := range snapshot.Include {
		c.include[sel] = hash
	}
	for sel, hash := range snapshot.Exclude {
		if _, ok := c.include[sel]; ok {
			continue
		}
		c.exclude[sel] = hash
	}
	c.version++
}

// Lookup returns the cached verdict of a selector.
func (c *Cache) Lookup(selector string) (Verdict, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, ok := c.include[selector]; ok {
		return VerdictMint, true
	}
	if _, ok := c.exclude[selector]; ok {
		return VerdictNotMint, true
	}
	return VerdictUnknown, false
}

// Record stores a definitive verdict. Unknown verdicts are ignored.
func (c *Cache) Record(selector string, verdict Verdict, txHash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch verdict {
	case VerdictMint:
		delete(c.exclude, selector)
		c.include[selector] = txHash
	case VerdictNotMint:
		delete(c.include, selector)
		c.exclude[selector] = txHash
	default:
		return
	}
	c.version++
}

// Snapshot returns a copy of both partitions.
func (c *Cache) Snapshot() domain.MethodCache {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return domain.MethodCache{
		Include: maps.Clone(c.include),
		Exclude: maps.Clone(c.exclude),
	}
}

// Len returns the number of cached selectors.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.include) + len(c.exclude)
}

// Version returns a counter bumped on every mutation.
func (c *Cache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
