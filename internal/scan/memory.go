package scan

import (
	"context"
	"sync"
	"time"

	"github.com/wirechat/wirechat/internal/models"
)

// MemoryCache is an in-process Cache for single-instance development and
// tests. Entries expire after VerdictTTL like the shared cache.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	verdict models.ScanVerdict
	expires time.Time
}

// NewMemoryCache creates an empty in-process verdict cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, normalizedURL string) (*models.ScanVerdict, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[normalizedURL]
	if !ok {
		return nil, nil
	}
	if c.now().After(e.expires) {
		delete(c.entries, normalizedURL)
		return nil, nil
	}
	v := e.verdict
	return &v, nil
}

func (c *MemoryCache) Put(_ context.Context, normalizedURL string, v *models.ScanVerdict) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[normalizedURL] = memoryEntry{verdict: *v, expires: c.now().Add(VerdictTTL)}
	return nil
}
