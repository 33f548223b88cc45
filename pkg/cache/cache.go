package cache

import (
	"strings"
	"sync"
	"time"
)

type item[V any] struct {
	value     V
	expiresAt time.Time
}

func (i item[V]) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

// Cache is a thread-safe in-memory cache with TTL support
type Cache[V any] struct {
	items      map[string]item[V]
	mu         sync.RWMutex
	defaultTTL time.Duration
	now        func() time.Time

	stopOnce    sync.Once
	stopCleanup chan struct{}
}

// New creates a cache whose entries live for defaultTTL unless SetWithTTL
// says otherwise. A background goroutine drops expired entries until Stop.
func New[V any](defaultTTL time.Duration) *Cache[V] {
	c := &Cache[V]{
		items:       make(map[string]item[V]),
		defaultTTL:  defaultTTL,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}

	interval := defaultTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	go c.cleanup(interval)

	return c
}

// Get retrieves a value from cache
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.items[key]
	if !ok || it.expired(c.now()) {
		var zero V
		return zero, false
	}
	return it.value, true
}

// Set stores a value in cache with default TTL
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores a value with a custom TTL. ttl <= 0 never expires.
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it := item[V]{value: value}
	if ttl > 0 {
		it.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = it
}

// Delete removes a key from cache
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

// Invalidate removes keys with the given prefix, or every expired key when
// prefix is empty.
func (c *Cache[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, it := range c.items {
		if prefix == "" {
			if it.expired(now) {
				delete(c.items, key)
			}
			continue
		}
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Size returns the number of items, expired ones included until cleanup.
func (c *Cache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cache[V]) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Invalidate("")
		case <-c.stopCleanup:
			return
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}
