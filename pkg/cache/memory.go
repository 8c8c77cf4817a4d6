// Package cache provides a thread-safe, in-memory key-value store with
// TTL-based expiration and size-bounded eviction.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"schooldir/pkg/logger"
	"schooldir/pkg/utils"
)

const (
	DefaultMaxSize = 32 // MB
	DefaultTTL     = 5 * time.Minute

	// GCInterval: expired items cleanup frequency.
	GCInterval = time.Minute

	// DefaultMaxItemSize: larger payloads are not worth holding in the heap.
	DefaultMaxItemSize = 512 * 1024
)

type Options struct {
	Enabled     bool
	MaxSizeMB   int
	MaxItemSize int64
	TTL         time.Duration

	// Verbose logs GC activity.
	Verbose bool
}

type Item struct {
	Data      []byte
	ExpiresAt time.Time
	Size      int64
}

type MemoryCache struct {
	sync.RWMutex
	items       map[string]Item
	totalSize   int64
	maxSize     int64
	maxItemSize int64
	ttl         time.Duration
	enabled     bool
	verbose     bool

	stop     chan struct{}
	stopOnce sync.Once
}

// New initializes the cache and, when enabled, starts its GC worker.
// A disabled cache is a pass-through: Get always misses.
func New(opts Options) *MemoryCache {
	limitMB := int64(opts.MaxSizeMB)
	if limitMB <= 0 {
		limitMB = DefaultMaxSize
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxItem := opts.MaxItemSize
	if maxItem <= 0 {
		maxItem = DefaultMaxItemSize
	}

	c := &MemoryCache{
		maxSize:     limitMB * 1024 * 1024,
		maxItemSize: maxItem,
		ttl:         ttl,
		enabled:     opts.Enabled,
		verbose:     opts.Verbose,
		stop:        make(chan struct{}),
	}

	if c.enabled {
		c.items = make(map[string]Item)
		go c.startGC()
	}
	return c
}

func (c *MemoryCache) Enabled() bool { return c.enabled }

func (c *MemoryCache) TTL() time.Duration { return c.ttl }

// Set stores a value with the configured TTL. Items over the per-item
// limit, or over half the total capacity, are skipped.
func (c *MemoryCache) Set(key string, data []byte) {
	if !c.enabled {
		return
	}

	size := int64(len(data))
	if size > c.maxItemSize || size > c.maxSize/2 {
		return
	}

	c.Lock()
	defer c.Unlock()

	if oldItem, exists := c.items[key]; exists {
		c.totalSize -= oldItem.Size
		delete(c.items, key)
	}

	if c.totalSize+size > c.maxSize {
		c.prune()
	}

	c.items[key] = Item{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
		Size:      size,
	}
	c.totalSize += size
}

// Get retrieves an item if it exists and hasn't expired.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	c.RLock()
	defer c.RUnlock()

	item, found := c.items[key]
	if !found || time.Now().After(item.ExpiresAt) {
		return nil, false
	}
	return item.Data, true
}

// Delete explicitly removes an item.
func (c *MemoryCache) Delete(key string) {
	if !c.enabled {
		return
	}

	c.Lock()
	defer c.Unlock()

	if item, found := c.items[key]; found {
		delete(c.items, key)
		c.totalSize -= item.Size
	}
}

// DeletePrefix removes every key starting with prefix and reports how
// many were dropped.
func (c *MemoryCache) DeletePrefix(prefix string) int {
	if !c.enabled {
		return 0
	}

	c.Lock()
	defer c.Unlock()

	removed := 0
	for k, item := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
			c.totalSize -= item.Size
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Clear() {
	if !c.enabled {
		return
	}

	c.Lock()
	c.items = make(map[string]Item)
	c.totalSize = 0
	c.Unlock()
}

// Len returns the number of stored items, expired ones included until GC.
func (c *MemoryCache) Len() int {
	if !c.enabled {
		return 0
	}
	c.RLock()
	defer c.RUnlock()
	return len(c.items)
}

// Close stops the GC worker. The cache stays readable.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// prune evicts items that expire soonest until usage drops below 80%.
// Caller holds the write lock.
func (c *MemoryCache) prune() {
	if len(c.items) == 0 {
		return
	}

	targetSize := int64(float64(c.maxSize) * 0.80)

	type candidate struct {
		Key       string
		ExpiresAt time.Time
		Size      int64
	}

	candidates := make([]candidate, 0, len(c.items))
	for k, v := range c.items {
		candidates = append(candidates, candidate{k, v.ExpiresAt, v.Size})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ExpiresAt.Before(candidates[j].ExpiresAt)
	})

	for _, cand := range candidates {
		if c.totalSize <= targetSize {
			break
		}
		delete(c.items, cand.Key)
		c.totalSize -= cand.Size
	}
}

func (c *MemoryCache) startGC() {
	ticker := time.NewTicker(GCInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

func (c *MemoryCache) collect() {
	c.Lock()
	now := time.Now()
	removedCount := 0
	removedBytes := int64(0)
	for k, v := range c.items {
		if now.After(v.ExpiresAt) {
			delete(c.items, k)
			c.totalSize -= v.Size
			removedBytes += v.Size
			removedCount++
		}
	}
	c.Unlock()

	if removedCount > 0 && c.verbose {
		logger.LogInfo("[CACHE] GC: cleaned %d items (%s freed)", removedCount, utils.FormatBytes(removedBytes))
	}
}
