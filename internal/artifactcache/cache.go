package artifactcache

import (
	"container/list"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"splice/internal/config"
	"splice/internal/logging"
)

// Region names one of the cache's independent keyed stores.
type Region string

const (
	RegionPreview  Region = "preview"
	RegionMetadata Region = "metadata"
	RegionRender   Region = "render"
)

// ParseRegion maps user-supplied text to a Region.
func ParseRegion(value string) (Region, bool) {
	switch Region(strings.ToLower(strings.TrimSpace(value))) {
	case RegionPreview:
		return RegionPreview, true
	case RegionMetadata:
		return RegionMetadata, true
	case RegionRender:
		return RegionRender, true
	}
	return "", false
}

// Regions lists every region in stats order.
func Regions() []Region {
	return []Region{RegionPreview, RegionMetadata, RegionRender}
}

// PreviewKey identifies one preview frame by source, position, output
// resolution, and quality.
func PreviewKey(path string, at time.Duration, width, height, quality int) string {
	return fmt.Sprintf("%s|%d|%dx%d|q%d", filepath.Clean(path), at.Milliseconds(), width, height, quality)
}

// MetadataKey identifies probed metadata for one media file.
func MetadataKey(path string) string {
	return filepath.Clean(path)
}

// RegionStats describes one region's usage and effectiveness.
type RegionStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Bytes      int64   `json:"bytes"`
	Requests   uint64  `json:"requests"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	HitRatio   float64 `json:"hit_ratio"`
}

// Stats aggregates usage across all regions.
type Stats struct {
	Preview      RegionStats `json:"preview"`
	Metadata     RegionStats `json:"metadata"`
	Render       RegionStats `json:"render"`
	TotalBytes   int64       `json:"total_bytes"`
	BudgetBytes  int64       `json:"budget_bytes"`
	TotalEntries int         `json:"total_entries"`
}

// Usage reports per-region and total byte counts.
type Usage struct {
	PreviewBytes  int64 `json:"preview_bytes"`
	MetadataBytes int64 `json:"metadata_bytes"`
	RenderBytes   int64 `json:"render_bytes"`
	TotalBytes    int64 `json:"total_bytes"`
	BudgetBytes   int64 `json:"budget_bytes"`
}

type entry struct {
	key      string
	value    any
	size     int64
	storedAt time.Time
	lastUsed time.Time
}

type region struct {
	name       Region
	maxEntries int
	ttl        time.Duration
	order      *list.List
	index      map[string]*list.Element
	bytes      int64
	requests   uint64
	hits       uint64
	misses     uint64
}

func newRegion(name Region, maxEntries int, ttl time.Duration) *region {
	return &region{
		name:       name,
		maxEntries: maxEntries,
		ttl:        ttl,
		order:      list.New(),
		index:      make(map[string]*list.Element),
	}
}

func (r *region) expired(e *entry, now time.Time) bool {
	return r.ttl > 0 && now.Sub(e.storedAt) > r.ttl
}

// oldest returns the least recently used element, or nil when empty.
func (r *region) oldest() *list.Element {
	return r.order.Back()
}

func (r *region) remove(elem *list.Element) *entry {
	e := elem.Value.(*entry)
	r.order.Remove(elem)
	delete(r.index, e.key)
	r.bytes -= e.size
	return e
}

func (r *region) stats() RegionStats {
	s := RegionStats{
		Entries:    len(r.index),
		MaxEntries: r.maxEntries,
		Bytes:      r.bytes,
		Requests:   r.requests,
		Hits:       r.hits,
		Misses:     r.misses,
	}
	if r.requests > 0 {
		s.HitRatio = float64(r.hits) / float64(r.requests)
	}
	return s
}

// Cache is the shared in-memory artifact store. All methods are safe for
// concurrent use; one reader-writer lock guards every region.
type Cache struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	budget  int64
	regions map[Region]*region

	// now is replaced in tests to control expiry.
	now func() time.Time
}

// New builds a cache sized from the configuration. A region whose entry
// limit is zero or negative is disabled: stores become no-ops and reads
// always miss.
func New(cfg *config.Config, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Cache{
		logger: logging.NewComponentLogger(logger, "artifactcache"),
		budget: cfg.MemoryBudgetBytes(),
		regions: map[Region]*region{
			RegionPreview:  newRegion(RegionPreview, cfg.Cache.MaxPreviewEntries, cfg.PreviewTTL()),
			RegionMetadata: newRegion(RegionMetadata, cfg.Cache.MaxMetadataEntries, cfg.MetadataTTL()),
			RegionRender:   newRegion(RegionRender, cfg.Cache.MaxRenderEntries, cfg.RenderTTL()),
		},
		now: time.Now,
	}
	return c
}

// Store inserts or replaces an entry. It always succeeds; entry caps and
// the shared memory budget are enforced by evicting least recently used
// entries, never by rejecting the new one.
func (c *Cache) Store(name Region, key string, value any, size int64) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	if size < 0 {
		size = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.regions[name]
	if !ok || r.maxEntries <= 0 {
		return
	}

	now := c.now()
	var stored *list.Element
	if elem, exists := r.index[key]; exists {
		e := elem.Value.(*entry)
		r.bytes += size - e.size
		e.value = value
		e.size = size
		e.storedAt = now
		e.lastUsed = now
		r.order.MoveToFront(elem)
		stored = elem
	} else {
		stored = r.order.PushFront(&entry{key: key, value: value, size: size, storedAt: now, lastUsed: now})
		r.index[key] = stored
		r.bytes += size
	}

	for len(r.index) > r.maxEntries {
		c.evict(r, r.oldest(), "entry_limit")
	}
	c.enforceBudget(stored)
}

// Get returns the cached value for key. A present, unexpired entry counts
// as a hit and refreshes its recency; an expired entry is dropped and
// counts as a miss, as does an absent key.
func (c *Cache) Get(name Region, key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.regions[name]
	if !ok {
		return nil, false
	}
	r.requests++

	elem, exists := r.index[strings.TrimSpace(key)]
	if !exists {
		r.misses++
		return nil, false
	}
	e := elem.Value.(*entry)
	now := c.now()
	if r.expired(e, now) {
		c.evict(r, elem, "expired")
		r.misses++
		return nil, false
	}

	r.hits++
	e.lastUsed = now
	r.order.MoveToFront(elem)
	return e.value, true
}

// Delete removes one entry, reporting whether it was present.
func (c *Cache) Delete(name Region, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.regions[name]
	if !ok {
		return false
	}
	elem, exists := r.index[strings.TrimSpace(key)]
	if !exists {
		return false
	}
	r.remove(elem)
	return true
}

// Clear empties one region and returns the number of entries dropped.
// Counters are preserved; only the stored entries go.
func (c *Cache) Clear(name Region) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.regions[name]
	if !ok {
		return 0
	}
	return c.clearRegion(r)
}

// ClearAll empties every region and returns the total entries dropped.
func (c *Cache) ClearAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for _, name := range Regions() {
		dropped += c.clearRegion(c.regions[name])
	}
	return dropped
}

func (c *Cache) clearRegion(r *region) int {
	dropped := len(r.index)
	r.order.Init()
	r.index = make(map[string]*list.Element)
	r.bytes = 0
	if dropped > 0 {
		c.logger.Debug("cleared cache region",
			zap.String("region", string(r.name)),
			zap.Int("entries_dropped", dropped))
	}
	return dropped
}

// SweepExpired walks every region and removes entries past their TTL,
// returning the number removed.
func (c *Cache) SweepExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	var freed int64
	for _, name := range Regions() {
		r := c.regions[name]
		for elem := r.order.Back(); elem != nil; {
			prev := elem.Prev()
			e := elem.Value.(*entry)
			if r.expired(e, now) {
				freed += e.size
				r.remove(elem)
				removed++
			}
			elem = prev
		}
	}
	if removed > 0 {
		c.logger.Info("swept expired cache entries",
			zap.Int("entries_removed", removed),
			zap.Int64("bytes_freed", freed))
	}
	return removed
}

// SetLimits replaces the per-region entry caps, evicting least recently
// used entries from any region now over its cap. A cap of zero or less
// disables the region and drops its contents.
func (c *Cache) SetLimits(preview, metadata, render int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	limits := map[Region]int{
		RegionPreview:  preview,
		RegionMetadata: metadata,
		RegionRender:   render,
	}
	for name, limit := range limits {
		r := c.regions[name]
		r.maxEntries = limit
		if limit <= 0 {
			c.clearRegion(r)
			continue
		}
		for len(r.index) > r.maxEntries {
			c.evict(r, r.oldest(), "entry_limit")
		}
	}
	c.logger.Info("cache limits updated",
		zap.Int("preview_max", preview),
		zap.Int("metadata_max", metadata),
		zap.Int("render_max", render))
}

// Stats reports per-region counters plus totals.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		Preview:     c.regions[RegionPreview].stats(),
		Metadata:    c.regions[RegionMetadata].stats(),
		Render:      c.regions[RegionRender].stats(),
		BudgetBytes: c.budget,
	}
	s.TotalBytes = s.Preview.Bytes + s.Metadata.Bytes + s.Render.Bytes
	s.TotalEntries = s.Preview.Entries + s.Metadata.Entries + s.Render.Entries
	return s
}

// MemoryUsage reports per-region and total byte counts.
func (c *Cache) MemoryUsage() Usage {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u := Usage{
		PreviewBytes:  c.regions[RegionPreview].bytes,
		MetadataBytes: c.regions[RegionMetadata].bytes,
		RenderBytes:   c.regions[RegionRender].bytes,
		BudgetBytes:   c.budget,
	}
	u.TotalBytes = u.PreviewBytes + u.MetadataBytes + u.RenderBytes
	return u
}

// totalBytes must be called with the lock held.
func (c *Cache) totalBytes() int64 {
	var total int64
	for _, r := range c.regions {
		total += r.bytes
	}
	return total
}

// enforceBudget evicts the globally least recently used entries until the
// cache fits its memory budget. The just-stored element is never evicted;
// a single entry larger than the whole budget survives until the next
// store displaces it.
func (c *Cache) enforceBudget(keep *list.Element) {
	if c.budget <= 0 {
		return
	}
	for c.totalBytes() > c.budget {
		var victimRegion *region
		var victim *list.Element
		for _, name := range Regions() {
			r := c.regions[name]
			elem := r.oldest()
			if elem == nil || elem == keep {
				continue
			}
			if victim == nil || elem.Value.(*entry).lastUsed.Before(victim.Value.(*entry).lastUsed) {
				victimRegion = r
				victim = elem
			}
		}
		if victim == nil {
			return
		}
		c.evict(victimRegion, victim, "memory_budget")
	}
}

// evict must be called with the lock held.
func (c *Cache) evict(r *region, elem *list.Element, reason string) {
	if elem == nil {
		return
	}
	e := r.remove(elem)
	c.logger.Debug("evicted cache entry",
		zap.String("region", string(r.name)),
		zap.String("key", e.key),
		zap.Int64("entry_bytes", e.size),
		zap.String("reason", reason))
}
