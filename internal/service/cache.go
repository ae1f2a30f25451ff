package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/vstock/store-assistant/internal/model"
)

// Cache is the query-result cache collaborator. Caching is an optimization,
// never a correctness dependency: implementations may fail and callers must
// treat failures as misses.
type Cache interface {
	Get(key string) (*model.ChatResult, bool)
	Set(key string, result *model.ChatResult)
}

// QueryCacheKey derives the cache key for one (query, user) pair. The query
// is normalized by lowercasing and trimming so that trivially re-cased
// repeats hit the same entry.
func QueryCacheKey(query, userID string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:]) + ":" + userID
}

// TTLCache is an in-process Cache with per-entry expiry.
type TTLCache struct {
	inner *gocache.Cache
	ttl   time.Duration
}

// NewTTLCache creates a cache whose entries expire after ttl.
func NewTTLCache(ttl time.Duration) *TTLCache {
	return &TTLCache{
		inner: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func (c *TTLCache) Get(key string) (*model.ChatResult, bool) {
	v, ok := c.inner.Get(key)
	if !ok {
		return nil, false
	}
	result, ok := v.(*model.ChatResult)
	return result, ok
}

func (c *TTLCache) Set(key string, result *model.ChatResult) {
	c.inner.Set(key, result, c.ttl)
}
