package storage

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fieldscan/fieldscan-backend/internal/docprocessing/domain"
)

// ResultCache stores canonical extraction results
type ResultCache interface {
	Get(key string) (Entry, bool)
	Set(key string, e Entry)
}

// Entry is one cached result. Expected is the layout tuple its coverage was
// measured against.
type Entry struct {
	Values   domain.Values
	Layout   domain.Layout
	Expected []string
}

func (e Entry) clone() Entry {
	return Entry{
		Values:   e.Values.Clone(),
		Layout:   e.Layout,
		Expected: append([]string(nil), e.Expected...),
	}
}

// CacheKey builds fingerprint::category::sorted keys, with ::screenType
// appended when set.
func CacheKey(fingerprint string, cat domain.Category, keys []string, screenType domain.ScreenType) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	key := fingerprint + "::" + string(cat) + "::" + strings.Join(sorted, "|")
	if screenType != "" {
		key += "::" + string(screenType)
	}
	return key
}

// CacheOptions configures a MemoryCache. Zero values mean no expiry, no
// size bound and no background cleanup.
type CacheOptions struct {
	TTL             time.Duration
	MaxEntries      int
	CleanupInterval time.Duration
}

type cacheEntry struct {
	entry    Entry
	storedAt time.Time
	seq      uint64
}

// MemoryCache is an in-process ResultCache safe for concurrent use.
// When full, the oldest insertion is evicted first.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	opts    CacheOptions
	seq     uint64
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache creates a cache and starts its cleanup loop when both a
// TTL and a cleanup interval are set.
func NewMemoryCache(opts CacheOptions) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]cacheEntry),
		opts:    opts,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if opts.TTL > 0 && opts.CleanupInterval > 0 {
		go c.cleanupLoop()
	}
	return c
}

// Get returns a copy of the entry stored under key
func (c *MemoryCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		return Entry{}, false
	}
	return e.entry.clone(), true
}

// Set stores a copy of e under key
func (c *MemoryCache) Set(key string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.opts.MaxEntries > 0 {
		for len(c.entries) >= c.opts.MaxEntries {
			c.evictOldest()
		}
	}

	c.seq++
	c.entries[key] = cacheEntry{entry: e.clone(), storedAt: c.now(), seq: c.seq}
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup loop
func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) expired(e cacheEntry) bool {
	return c.opts.TTL > 0 && c.now().Sub(e.storedAt) > c.opts.TTL
}

// evictOldest must be called with the write lock held
func (c *MemoryCache) evictOldest() {
	var oldestKey string
	var oldestSeq uint64
	for k, e := range c.entries {
		if oldestKey == "" || e.seq < oldestSeq {
			oldestKey, oldestSeq = k, e.seq
		}
	}
	delete(c.entries, oldestKey)
}

func (c *MemoryCache) cleanupLoop() {
	ticker := time.NewTicker(c.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

func (c *MemoryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, k)
		}
	}
}
