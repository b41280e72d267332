// Package cache is an in-process result cache keyed by content
// fingerprint, bounded by TTL, byte budget, and entry count.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nbrem108/sprintdeck/internal/model"
)

// Defaults for the cache budgets.
const (
	DefaultTTL        = 24 * time.Hour
	DefaultMaxBytes   = 100 << 20 // 100MB
	DefaultMaxEntries = 50
)

// ErrEntryTooLarge is returned by Set when a single result exceeds the
// cache's total byte budget.
var ErrEntryTooLarge = errors.New("cache: entry larger than total byte budget")

// ContextSnapshot records what produced a cached result.
type ContextSnapshot struct {
	PresentationID string
	SlideCount     int
	Format         model.Format
	Quality        model.Quality
}

type entry struct {
	result       *model.ExportResult
	snapshot     ContextSnapshot
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  int
	size         int
}

// Stats are cumulative across the cache's lifetime, not per-query.
type Stats struct {
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	Entries    int     `json:"entries"`
	TotalBytes int     `json:"total_bytes"`
	HitRate    float64 `json:"hit_rate"`
	Strategy   string  `json:"strategy"`
}

// Config tunes a ResultCache. Zero values take the defaults above.
type Config struct {
	TTL        time.Duration
	MaxBytes   int
	MaxEntries int
	Strategy   Strategy
}

// ResultCache maps export fingerprints to produced results. Safe for
// concurrent use; all entry bookkeeping is guarded by one mutex.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	totalBytes int
	ttl        time.Duration
	maxBytes   int
	maxEntries int
	strategy   Strategy
	hits       int64
	misses     int64
	evictions  int64
	now        func() time.Time // test seam
}

// New creates a ResultCache.
func New(cfg Config) *ResultCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	if cfg.Strategy == nil {
		cfg.Strategy = LRU{}
	}
	return &ResultCache{
		entries:    make(map[string]*entry),
		ttl:        cfg.TTL,
		maxBytes:   cfg.MaxBytes,
		maxEntries: cfg.MaxEntries,
		strategy:   cfg.Strategy,
		now:        time.Now,
	}
}

// Get returns the cached result for key, or nil on a miss. Expired
// entries are removed lazily and count as misses.
func (c *ResultCache) Get(key string) *model.ExportResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}
	if c.now().Sub(e.createdAt) > c.ttl {
		c.removeLocked(key)
		c.misses++
		return nil
	}
	e.lastAccessed = c.now()
	e.accessCount++
	c.hits++
	return e.result
}

// Has reports whether a live (non-expired) entry exists without
// touching access bookkeeping or hit/miss counters.
func (c *ResultCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return ok && c.now().Sub(e.createdAt) <= c.ttl
}

// Set stores a result under key, evicting per the strategy until it
// fits both budgets. A result larger than the whole byte budget is
// rejected with ErrEntryTooLarge.
func (c *ResultCache) Set(key string, result *model.ExportResult, snap ContextSnapshot) error {
	size := len(result.Payload)
	if size > c.maxBytes {
		return ErrEntryTooLarge
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.totalBytes -= old.size
		delete(c.entries, key)
	}

	evicted := c.evictLocked(size, 1)
	if a, ok := c.strategy.(*Adaptive); ok {
		a.Observe(evicted > 0)
	}

	now := c.now()
	c.entries[key] = &entry{
		result:       result,
		snapshot:     snap,
		createdAt:    now,
		lastAccessed: now,
		size:         size,
	}
	c.totalBytes += size
	return nil
}

// evictLocked removes entries in strategy order until incoming bytes
// and entries fit both budgets. Returns the number of evicted entries.
func (c *ResultCache) evictLocked(incomingBytes, incomingEntries int) int {
	fits := func() bool {
		return c.totalBytes+incomingBytes <= c.maxBytes &&
			len(c.entries)+incomingEntries <= c.maxEntries
	}
	if fits() {
		return 0
	}

	victims := c.strategy.Victims(c.snapshotLocked())
	evicted := 0
	for _, key := range victims {
		if fits() {
			break
		}
		c.removeLocked(key)
		evicted++
	}
	return evicted
}

func (c *ResultCache) snapshotLocked() []EntryInfo {
	infos := make([]EntryInfo, 0, len(c.entries))
	for k, e := range c.entries {
		infos = append(infos, EntryInfo{
			Key:          k,
			Size:         e.size,
			CreatedAt:    e.createdAt,
			LastAccessed: e.lastAccessed,
			AccessCount:  e.accessCount,
		})
	}
	return infos
}

func (c *ResultCache) removeLocked(key string) {
	if e, ok := c.entries[key]; ok {
		c.totalBytes -= e.size
		delete(c.entries, key)
		c.evictions++
	}
}

// Delete removes an entry explicitly.
func (c *ResultCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

// Cleanup removes every expired entry and re-enforces both budgets.
func (c *ResultCache) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if c.now().Sub(e.createdAt) > c.ttl {
			c.removeLocked(k)
		}
	}
	c.evictLocked(0, 0)
}

// SetStrategy swaps the eviction strategy at runtime. Entries survive.
func (c *ResultCache) SetStrategy(s Strategy) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.strategy = s
	c.mu.Unlock()
}

// Stats returns cumulative counters and current occupancy.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		Entries:    len(c.entries),
		TotalBytes: c.totalBytes,
		Strategy:   c.strategy.Name(),
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// RunJanitor sweeps expired entries every interval until ctx is
// cancelled. Run it in a goroutine alongside the server.
func (c *ResultCache) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Cleanup()
			slog.Debug("cache janitor sweep complete", "entries", c.Stats().Entries)
		}
	}
}
