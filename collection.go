package vectorkeep

import (
	"sync"
	"time"

	"github.com/vectorkeep/vectorkeep/internal/annindex"
	"github.com/vectorkeep/vectorkeep/internal/distance"
	"github.com/vectorkeep/vectorkeep/internal/filterlang"
	"github.com/vectorkeep/vectorkeep/internal/metadata"
	"github.com/vectorkeep/vectorkeep/internal/wal"
)

// collectionState is one collection's full in-process working set: the ANN
// graph, its metadata postings, its WAL stream, and the bookkeeping that
// maps a caller-facing DocumentID onto the dense ordinal space the ANN
// index and metadata postings share.
type collectionState struct {
	mu sync.RWMutex

	descriptor CollectionDescriptor

	ann         *annindex.Index
	metaIdx     *metadata.Index
	filterCache *filterlang.Cache
	walStream   *wal.Stream

	nextOrdinal  uint32
	ordinalOf    map[DocumentID]uint32
	docOf        map[uint32]DocumentID
	externalOf   map[uint32]string
	metadataOf   map[uint32]map[string]any
	insertedAtOf map[uint32]time.Time
	createdAt    time.Time

	// epoch increments on every write; it is folded into query-cache keys
	// so a cached result can never outlive the data it was computed from.
	epoch uint64

	closed      bool
	quarantined bool
}

// quarantine marks the collection unhealthy after a corruption or fatal
// error; every subsequent operation against it fails fast with
// ErrQuarantined instead of risking further damage to already-suspect
// state.
func (c *collectionState) quarantine() {
	c.mu.Lock()
	c.quarantined = true
	c.mu.Unlock()
}

func (c *collectionState) healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.quarantined
}

func newCollectionState(desc CollectionDescriptor, idxCfg IndexConfig, cacheCfg CacheConfig, walStream *wal.Stream) (*collectionState, error) {
	kernel, err := distance.SelectKernel(desc.Metric.String())
	if err != nil {
		return nil, err
	}
	params := annindex.Params{
		M:                     idxCfg.M,
		EfConstruction:        idxCfg.EfConstruction,
		DefaultEfSearch:       idxCfg.DefaultEfSearch,
		RebuildTombstoneRatio: idxCfg.TombstoneRebuildRatio,
	}
	return &collectionState{
		descriptor:   desc,
		ann:          annindex.New(kernel, params, time.Now().UnixNano()),
		metaIdx:      metadata.New(),
		filterCache:  filterlang.NewCache(cacheCfg.Capacity, cacheCfg.TTL),
		walStream:    walStream,
		ordinalOf:    make(map[DocumentID]uint32),
		docOf:        make(map[uint32]DocumentID),
		externalOf:   make(map[uint32]string),
		metadataOf:   make(map[uint32]map[string]any),
		insertedAtOf: make(map[uint32]time.Time),
		createdAt:    time.Now(),
	}, nil
}

// allocateOrdinal hands out the next dense ordinal for this collection.
// Ordinals are not reused while the collection stays loaded, even across
// Compact, so a stale ordinal captured by a concurrent reader is simply
// absent rather than pointing at a different document. PromoteToHot, which
// rebuilds a Cold collection from its snapshot, numbers ordinals from zero
// again.
func (c *collectionState) allocateOrdinal() uint32 {
	o := c.nextOrdinal
	c.nextOrdinal++
	return o
}

func (c *collectionState) documentCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ordinalOf)
}
