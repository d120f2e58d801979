// Package querycache caches full query responses keyed by everything that
// determines their content, with epoch-based invalidation standing in for
// per-write cache busting: every write to a collection bumps its epoch, so
// a stale cache key simply never hits again rather than needing active
// eviction.
package querycache

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Key identifies one cacheable query.
type Key struct {
	CollectionName string
	QueryVector    []float32
	TopK           int
	FilterJSON     string
	Epoch          uint64
}

func (k Key) hash() [32]byte {
	h := sha256.New()
	h.Write([]byte(k.CollectionName))
	for _, f := range k.QueryVector {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
		h.Write(buf[:])
	}
	var topK [8]byte
	binary.LittleEndian.PutUint64(topK[:], uint64(k.TopK))
	h.Write(topK[:])
	h.Write([]byte(k.FilterJSON))
	var epoch [8]byte
	binary.LittleEndian.PutUint64(epoch[:], k.Epoch)
	h.Write(epoch[:])
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Cache stores QueryResult-shaped values as any so internal/querycache has
// no dependency on the root package.
type Cache struct {
	lru *lru.LRU[[32]byte, any]
}

// New builds a Cache with the given capacity and TTL. An entry expires ttl
// after it was Put; Get does not extend its lifetime.
func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{lru: lru.NewLRU[[32]byte, any](capacity, nil, ttl)}
}

// Get returns the cached value for key, if present and unexpired.
func (c *Cache) Get(key Key) (any, bool) {
	return c.lru.Get(key.hash())
}

// Put stores value under key.
func (c *Cache) Put(key Key, value any) {
	c.lru.Add(key.hash(), value)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Purge clears the cache entirely.
func (c *Cache) Purge() { c.lru.Purge() }
