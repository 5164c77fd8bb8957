package anim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// Clip is a decoded motion clip. The binary payload is opaque to the
// driver; the avatarview knows how to apply it.
type Clip struct {
	Name     string
	Data     []byte
	Duration time.Duration // 0: unknown, treated as one-shot by the blender
}

// ClipLoader fetches and decodes a clip on cache miss.
type ClipLoader func() (*Clip, error)

var ErrClipNotFound = errors.New("clip not found in cache")

// ClipCache is an LRU cache of motion clips, bounded by entry count.
//
// Entries backing active playback are pinned by the MotionBlender and
// never evicted: during a crossfade that is both the outgoing and the
// incoming clip.
//
// 不是全局单例：每个 avatar 一个实例，随 avatar 一起销毁。
type ClipCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	maxSize int
	touches int64           // recency counter, bumps on every Get/Ensure hit
	pinned  map[string]bool // keys in active playback

	logger *slog.Logger
}

type cacheEntry struct {
	clip    *Clip
	touched int64 // last touch order
}

func NewClipCache(maxSize int) *ClipCache {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &ClipCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		pinned:  make(map[string]bool),
	}
	c.logger = slog.With("clipCache", fmt.Sprintf("%p", c))
	return c
}

// Get returns a resident clip and refreshes its recency.
func (c *ClipCache) Get(key string) (*Clip, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.touches++
	e.touched = c.touches
	return e.clip, true
}

// Ensure returns the clip for key, invoking load on a miss.
// The load runs outside the cache lock: a slow fetch must not stall
// the frame loop's Get calls.
func (c *ClipCache) Ensure(key string, load ClipLoader) (*Clip, error) {
	if clip, ok := c.Get(key); ok {
		return clip, nil
	}

	clip, err := load()
	if err != nil {
		return nil, fmt.Errorf("load clip %q: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.touches++
	c.entries[key] = &cacheEntry{clip: clip, touched: c.touches}

	for len(c.entries) > c.maxSize {
		if !c.evictOldest() {
			break // only pinned entries left, nothing evictable
		}
	}

	return clip, nil
}

// Pin marks key as backing active playback. A pinned entry is skipped
// by eviction until its Unpin.
func (c *ClipCache) Pin(key string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinned[key] = true
}

// Unpin makes key evictable again.
func (c *ClipCache) Unpin(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pinned, key)
}

func (c *ClipCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Has reports residency without refreshing recency.
func (c *ClipCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// evictOldest removes the least-recently-touched entry that is not
// pinned. Caller holds c.mu.
func (c *ClipCache) evictOldest() bool {
	var victim string
	var oldest int64 = -1

	for key, e := range c.entries {
		if c.pinned[key] {
			continue
		}
		if oldest < 0 || e.touched < oldest {
			oldest = e.touched
			victim = key
		}
	}
	if oldest < 0 {
		return false
	}

	delete(c.entries, victim)
	c.logger.Info("[clipCache] evict", "key", victim, "len", len(c.entries))
	return true
}
