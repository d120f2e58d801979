package tiering

import (
	"sync"
	"time"
)

// Tier is a collection's current storage tier.
type Tier uint8

const (
	TierHot Tier = iota
	TierWarm
	TierCold
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierWarm:
		return "warm"
	case TierCold:
		return "cold"
	default:
		return "unknown"
	}
}

// State is one collection's tier bookkeeping, guarded by its own mutex so
// transitions for different collections never block each other.
type State struct {
	mu sync.Mutex

	CollectionID [16]byte
	Tier         Tier
	LastAccessed time.Time
	AccessCount  int64
	Pinned       bool
	SnapshotID   string
	WarmFilePath string

	// windowStart/windowCount track accesses within the trailing hour used
	// to decide Warm/Cold -> Hot promotion; reset only when the window ages
	// out (an access more than an hour after windowStart).
	windowStart time.Time
	windowCount int64
}

// NewState creates a State starting in the Hot tier, as a freshly created
// collection's ANN index lives in RAM until first demoted.
func NewState(collectionID [16]byte) *State {
	return &State{CollectionID: collectionID, Tier: TierHot, LastAccessed: time.Now()}
}

// Snapshot returns a value copy of s's fields under lock, safe to read
// without holding s.mu.
func (s *State) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		CollectionID: s.CollectionID,
		Tier:         s.Tier,
		LastAccessed: s.LastAccessed,
		AccessCount:  s.AccessCount,
		Pinned:       s.Pinned,
		SnapshotID:   s.SnapshotID,
		WarmFilePath: s.WarmFilePath,
	}
}

// Lock/Unlock expose s.mu directly so Controller can hold the per-collection
// lock across a whole transition (load/demote), not just a field read.
func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }
