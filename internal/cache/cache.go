package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/synastry-o-meter/internal/monitoring"
)

// CacheHeader reports whether a response came from the cache
const CacheHeader = "X-Cache"

// Recorder receives hit and miss counts. Both monitoring.Metrics and
// monitoring.PromRegistry satisfy it.
type Recorder interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

// CacheItem represents a cached item with expiration
type CacheItem struct {
	Data      []byte    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired checks if the cache item has expired
func (c *CacheItem) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

// Cache is a TTL cache of scored responses. Scoring is a pure function of
// the request body and the loaded rule set, so the key covers both.
type Cache struct {
	mu       sync.RWMutex
	items    map[string]*CacheItem
	ttl      time.Duration
	maxItems int
	version  string

	hits   int64
	misses int64

	stop     chan struct{}
	stopOnce sync.Once
}

// NewCache creates a cache for responses produced under the given rule set
// version. maxItems <= 0 means unbounded.
func NewCache(ttl time.Duration, maxItems int, version string) *Cache {
	cache := &Cache{
		items:    make(map[string]*CacheItem),
		ttl:      ttl,
		maxItems: maxItems,
		version:  version,
		stop:     make(chan struct{}),
	}

	go cache.cleanup(time.Minute)

	return cache
}

// Close stops the cleanup goroutine
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Cache) evictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, item := range c.items {
		if item.IsExpired() {
			delete(c.items, key)
			n++
		}
	}
	return n
}

// Key derives the cache key for a request path and body
func (c *Cache) Key(path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(c.version))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()

	if !exists || item.IsExpired() {
		if exists {
			c.Delete(key)
		}
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return item.Data, true
}

// Set stores an item in the cache. When full, the entry closest to expiry
// is evicted.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; !exists && c.maxItems > 0 && len(c.items) >= c.maxItems {
		var oldest string
		var oldestAt time.Time
		for k, item := range c.items {
			if oldest == "" || item.ExpiresAt.Before(oldestAt) {
				oldest, oldestAt = k, item.ExpiresAt
			}
		}
		delete(c.items, oldest)
	}

	c.items[key] = &CacheItem{
		Data:      data,
		ExpiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*CacheItem)
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalItems := len(c.items)
	expiredItems := 0

	for _, item := range c.items {
		if item.IsExpired() {
			expiredItems++
		}
	}

	hitRate := float64(0)
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"total_items":      totalItems,
		"expired_items":    expiredItems,
		"active_items":     totalItems - expiredItems,
		"max_items":        c.maxItems,
		"ttl_seconds":      c.ttl.Seconds(),
		"ruleset_version":  c.version,
		"hits":             c.hits,
		"misses":           c.misses,
		"hit_rate_percent": hitRate,
	}
}

// Middleware caches successful POST responses on the given paths. Every
// recorder is told about hits and misses.
func (c *Cache) Middleware(logger *monitoring.Logger, recorders []Recorder, paths ...string) gin.HandlerFunc {
	cached := make(map[string]bool, len(paths))
	for _, p := range paths {
		cached[p] = true
	}

	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost || !cached[ctx.FullPath()] {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		key := c.Key(ctx.FullPath(), body)

		if data, found := c.Get(key); found {
			if logger != nil {
				logger.CacheLogger("get", key, true, c.Size())
			}
			for _, r := range recorders {
				r.IncrementCacheHit()
			}
			ctx.Set("cache_hit", true)
			ctx.Header(CacheHeader, "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", data)
			ctx.Abort()
			return
		}

		if logger != nil {
			logger.CacheLogger("get", key, false, c.Size())
		}
		for _, r := range recorders {
			r.IncrementCacheMiss()
		}
		ctx.Header(CacheHeader, "MISS")

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		if wrapper.Status() == http.StatusOK {
			c.Set(key, wrapper.body.Bytes())
			if logger != nil {
				logger.CacheLogger("set", key, false, c.Size())
			}
		}
	}
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
