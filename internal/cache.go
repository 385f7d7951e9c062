package internal

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// defaultCacheEntries bounds the in-memory tier.
const defaultCacheEntries = 512

// Cache is a two-tier JSON cache: an in-memory map in front of an optional
// Redis instance. A nil *Cache caches nothing.
type Cache struct {
	mu         sync.Mutex
	l1         map[string]cacheEntry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
	log        logrus.FieldLogger
	now        func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// NewCache creates a cache. An empty redisURL disables the Redis tier; an
// unreachable Redis is logged and skipped.
func NewCache(ctx context.Context, redisURL string, ttl time.Duration, log logrus.FieldLogger) *Cache {
	c := &Cache{
		l1:         make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: defaultCacheEntries,
		log:        log,
		now:        time.Now,
	}
	if ttl <= 0 || redisURL == "" {
		return c
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.WithError(err).Warn("invalid redis URL, shared cache disabled")
		return c
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("redis unreachable, shared cache disabled")
		_ = rdb.Close()
		return c
	}
	c.rdb = rdb
	log.WithField("addr", opts.Addr).Debug("redis cache connected")
	return c
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("%s:%x", AppName, hash[:12])
}

// Get decodes the cached value for key into dst, reporting whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.ttl <= 0 {
		return false
	}

	c.mu.Lock()
	entry, ok := c.l1[key]
	if ok && !c.now().Before(entry.expiresAt) {
		delete(c.l1, key)
		ok = false
	}
	c.mu.Unlock()

	if ok && json.Unmarshal(entry.data, dst) == nil {
		c.hits.Add(1)
		return true
	}

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		if err == nil && json.Unmarshal(data, dst) == nil {
			c.hits.Add(1)
			c.store(key, data)
			return true
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			c.log.WithError(err).Debug("redis get failed")
		}
	}

	c.misses.Add(1)
	return false
}

// Set stores value in both tiers.
func (c *Cache) Set(ctx context.Context, key string, value any) {
	if c == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.log.WithError(err).Debug("cache marshal failed")
		return
	}
	c.store(key, data)

	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.WithError(err).Debug("redis set failed")
		}
	}
}

func (c *Cache) store(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.l1) >= c.maxEntries {
		c.evictLocked()
	}
	c.l1[key] = cacheEntry{data: data, expiresAt: c.now().Add(c.ttl)}
}

// evictLocked drops expired entries, then the entry closest to expiry.
func (c *Cache) evictLocked() {
	now := c.now()
	for k, e := range c.l1 {
		if !now.Before(e.expiresAt) {
			delete(c.l1, k)
		}
	}
	for len(c.l1) >= c.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.l1 {
			if oldestKey == "" || e.expiresAt.Before(oldest) {
				oldestKey, oldest = k, e.expiresAt
			}
		}
		delete(c.l1, oldestKey)
	}
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	if c == nil {
		return 0, 0
	}
	return c.hits.Load(), c.misses.Load()
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// CachedProvider memoizes a MetadataProvider.
type CachedProvider struct {
	MetadataProvider
	cache *Cache
}

// NewCachedProvider wraps p with c.
func NewCachedProvider(p MetadataProvider, c *Cache) *CachedProvider {
	return &CachedProvider{MetadataProvider: p, cache: c}
}

func (p *CachedProvider) VideoInfo(ctx context.Context, videoID string) (*VideoInfo, error) {
	key := CacheKey("video", videoID)
	var info VideoInfo
	if p.cache.Get(ctx, key, &info) {
		return &info, nil
	}

	got, err := p.MetadataProvider.VideoInfo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	p.cache.Set(ctx, key, got)
	return got, nil
}

func (p *CachedProvider) Comments(ctx context.Context, videoID string, limit int) ([]Comment, error) {
	key := CacheKey("comments", videoID, fmt.Sprint(limit))
	var comments []Comment
	if p.cache.Get(ctx, key, &comments) {
		return comments, nil
	}

	got, err := p.MetadataProvider.Comments(ctx, videoID, limit)
	if err != nil {
		return got, err
	}
	p.cache.Set(ctx, key, got)
	return got, nil
}
