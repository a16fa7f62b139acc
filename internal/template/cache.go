// Package template serves the operator-maintained pool and domain
// definition templates. Files are read once and held in memory for a
// bounded time so repeated provisioning runs do not reread them, while
// an operator edit is still picked up after the TTL.
package template

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/juju/clock"
)

// Cache is a TTL-bounded in-memory cache of template file contents. It
// is safe for concurrent use and owned by the process composition root;
// the time source is injected so tests control expiry.
type Cache struct {
	clock clock.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]entry
}

type entry struct {
	content string
	readAt  time.Time
}

// NewCache returns a Cache using clk as its time source. A zero or
// negative ttl caches entries for the process lifetime.
func NewCache(clk clock.Clock, ttl time.Duration) *Cache {
	return &Cache{
		clock:   clk,
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Read returns the contents of the template file at path, from memory
// when a fresh copy is cached.
func (c *Cache) Read(path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if e, ok := c.entries[path]; ok {
		if c.ttl <= 0 || now.Sub(e.readAt) < c.ttl {
			return e.content, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", path, err)
	}

	c.entries[path] = entry{content: string(data), readAt: now}
	return string(data), nil
}

// Render reads the template at path and substitutes args into its
// positional format verbs.
func (c *Cache) Render(path string, args ...any) (string, error) {
	tmpl, err := c.Read(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(tmpl, args...), nil
}
