package tiering

import (
	"sync"
	"time"
)

const shardCount = 16 // power of two, so hashing reduces to a bitmask

// accessStat is one collection's access bookkeeping.
type accessStat struct {
	lastAccess time.Time
	count      int64
}

// accessTracker records per-collection access recency/frequency across a
// fixed number of sharded locks, so concurrent queries against different
// collections never contend on the same mutex.
type accessTracker struct {
	shards [shardCount]struct {
		mu    sync.Mutex
		stats map[[16]byte]*accessStat
	}
}

func newAccessTracker() *accessTracker {
	t := &accessTracker{}
	for i := range t.shards {
		t.shards[i].stats = make(map[[16]byte]*accessStat)
	}
	return t
}

func shardFor(id [16]byte) int {
	// fnv-ish fold of the id into a shard index.
	var h uint32
	for _, b := range id {
		h = h*31 + uint32(b)
	}
	return int(h & (shardCount - 1))
}

// RecordAccess marks id as accessed at now.
func (t *accessTracker) RecordAccess(id [16]byte, now time.Time) {
	s := &t.shards[shardFor(id)]
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[id]
	if !ok {
		st = &accessStat{}
		s.stats[id] = st
	}
	st.lastAccess = now
	st.count++
}

// Stat returns a snapshot of id's access stat; ok is false if never
// recorded.
func (t *accessTracker) Stat(id [16]byte) (lastAccess time.Time, count int64, ok bool) {
	s := &t.shards[shardFor(id)]
	s.mu.Lock()
	defer s.mu.Unlock()
	st, present := s.stats[id]
	if !present {
		return time.Time{}, 0, false
	}
	return st.lastAccess, st.count, true
}

// Forget drops id's tracked stats, e.g. on collection deletion.
func (t *accessTracker) Forget(id [16]byte) {
	s := &t.shards[shardFor(id)]
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stats, id)
}
