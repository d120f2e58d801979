package filterlang

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache holds parsed filter ASTs, never the evaluated bitmap: the bitmap
// depends on live data and would go stale between uses. LRU eviction plus
// an idle TTL.
type Cache struct {
	lru *lru.LRU[[32]byte, *Node]
}

// NewCache builds a Cache with the given capacity and idle TTL.
func NewCache(capacity int, ttl time.Duration) *Cache {
	return &Cache{lru: lru.NewLRU[[32]byte, *Node](capacity, nil, ttl)}
}

// ParseCached parses raw filter JSON, returning a cached AST if raw's
// canonical form was seen within the TTL window, parsing and storing it
// otherwise. A hit re-adds the entry so its TTL restarts.
func (c *Cache) ParseCached(raw []byte) (*Node, error) {
	key := CacheKey(raw)
	if n, ok := c.lru.Get(key); ok {
		c.lru.Add(key, n)
		return n, nil
	}
	n, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, n)
	return n, nil
}

// Len reports the number of ASTs currently cached.
func (c *Cache) Len() int { return c.lru.Len() }
