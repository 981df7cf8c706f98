// Package cache provides the process-lifetime expiring key-value store
// shared by the catalog, meta, stream and session layers. Keys are grouped
// into namespaces by prefix ("catalog:", "stream:", "meta:", "auth:"), each
// with its own default TTL and entry cap.
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"raibridge/internal/infrastructure/metrics"
)

// Namespace prefixes recognized by the cache.
const (
	NamespaceCatalog = "catalog:"
	NamespaceStream  = "stream:"
	NamespaceMeta    = "meta:"
	NamespaceAuth    = "auth:"
)

// entry is a stored value with its expiry bookkeeping. A TTL of zero means
// the entry never expires.
type entry struct {
	value    any
	storedAt time.Time
	ttl      time.Duration
}

func (e entry) expiredAt(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.storedAt) > e.ttl
}

// Config holds the per-namespace TTL defaults and capacity limits.
type Config struct {
	CatalogTTL time.Duration
	StreamTTL  time.Duration
	MetaTTL    time.Duration
	AuthTTL    time.Duration
	DefaultTTL time.Duration

	// Caps maps a namespace prefix to its maximum entry count. A namespace
	// without a cap is unbounded (auth is bounded by the session store's own
	// limit instead).
	Caps map[string]int

	SweepInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		CatalogTTL:    time.Hour,
		StreamTTL:     5 * time.Minute,
		MetaTTL:       30 * time.Minute,
		AuthTTL:       24 * time.Hour,
		DefaultTTL:    time.Hour,
		SweepInterval: 5 * time.Minute,
		Caps: map[string]int{
			NamespaceCatalog: 1000,
			NamespaceStream:  100,
			NamespaceMeta:    500,
		},
	}
}

// Stats is a point-in-time snapshot of cache contents.
type Stats struct {
	Total           int `json:"total"`
	Valid           int `json:"valid"`
	Expired         int `json:"expired"`
	EstimatedMemory int `json:"estimated_memory_bytes"`
}

// Cache is an in-memory TTL store. Expiry is enforced lazily on Get/Has; the
// optional sweeper only bounds how long dead entries linger.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	cfg Config
	now func() time.Time
}

// New creates an empty cache with the given configuration.
func New(cfg Config) *Cache {
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = time.Hour
	}
	return &Cache{
		entries: make(map[string]entry),
		cfg:     cfg,
		now:     time.Now,
	}
}

// namespaceOf returns the key's namespace prefix, or "" for un-namespaced keys.
func namespaceOf(key string) string {
	idx := strings.Index(key, ":")
	if idx < 0 {
		return ""
	}
	return key[:idx+1]
}

// defaultTTL derives a TTL from the key's namespace prefix.
func (c *Cache) defaultTTL(key string) time.Duration {
	switch namespaceOf(key) {
	case NamespaceCatalog:
		return c.cfg.CatalogTTL
	case NamespaceStream:
		return c.cfg.StreamTTL
	case NamespaceMeta:
		return c.cfg.MetaTTL
	case NamespaceAuth:
		return c.cfg.AuthTTL
	default:
		return c.cfg.DefaultTTL
	}
}

// Set stores a value under key with the namespace's default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.defaultTTL(key))
}

// SetTTL stores a value with an explicit TTL. A TTL of zero makes the entry
// immortal. Storing over an existing key restarts its expiry window. After
// the insert the namespace cap is enforced, evicting oldest-stored entries
// first.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	if ttl < 0 {
		ttl = 0
	}

	c.mu.Lock()
	c.entries[key] = entry{
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	}
	c.enforceCapLocked(namespaceOf(key))
	c.mu.Unlock()

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, namespaceOf(key)).Inc()
}

// Get returns the value stored under key. Expired entries are removed and
// reported as a miss.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	if ok && e.expiredAt(c.now()) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, namespaceOf(key)).Inc()
		return nil, false
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, namespaceOf(key)).Inc()
	return e.value, true
}

// Has reports whether key holds a live entry, removing it if expired.
func (c *Cache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	if e.expiredAt(c.now()) {
		delete(c.entries, key)
		return false
	}
	return true
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if ok {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpDelete, metrics.CacheStatusSuccess, namespaceOf(key)).Inc()
	}
	return ok
}

// Clear empties the store.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Keys returns all stored keys, including ones not yet swept.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache contents. Memory is a best-effort
// JSON-size estimate; values that fail to serialize count as zero bytes.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var s Stats
	now := c.now()
	for key, e := range c.entries {
		s.Total++
		if e.expiredAt(now) {
			s.Expired++
		} else {
			s.Valid++
		}
		s.EstimatedMemory += len(key) + estimateSize(e.value)
	}
	return s
}

func estimateSize(v any) int {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

// enforceCapLocked evicts oldest-stored entries from ns until it fits its
// cap. Caller must hold the write lock.
func (c *Cache) enforceCapLocked(ns string) {
	limit, ok := c.cfg.Caps[ns]
	if !ok || limit <= 0 {
		return
	}

	type keyedEntry struct {
		key      string
		storedAt time.Time
	}
	var members []keyedEntry
	for k, e := range c.entries {
		if namespaceOf(k) == ns {
			members = append(members, keyedEntry{k, e.storedAt})
		}
	}
	if len(members) <= limit {
		return
	}

	sort.Slice(members, func(i, j int) bool {
		return members[i].storedAt.Before(members[j].storedAt)
	})
	for _, m := range members[:len(members)-limit] {
		delete(c.entries, m.key)
		metrics.CacheEvictionsTotal.WithLabelValues(ns).Inc()
	}
}

// Sweep removes every expired entry and returns how many were dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if e.expiredAt(now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// StartSweeper runs the periodic sweep until ctx is cancelled. It is an
// optimization only; Get and Has enforce expiry on their own.
func (c *Cache) StartSweeper(ctx context.Context) {
	interval := c.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}
