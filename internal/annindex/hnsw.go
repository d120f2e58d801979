// Package annindex implements an HNSW-style approximate nearest-neighbor
// graph: dense uint32 arena ids instead of a map[string]*node, so deletes
// never invalidate neighbor edges by way of a dangling pointer, a
// roaring-bitmap candidate mask for filtered search, adaptive ef_search
// raising, and RWMutex-guarded concurrent search against exclusive writes.
package annindex

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/vectorkeep/vectorkeep/internal/distance"
)

// node is one HNSW graph vertex. Neighbors are arena indices (uint32), not
// pointers, so the graph's cycles never need a GC-visible pointer cycle and
// a tombstoned node's storage can be nil'd out at Compact without dangling
// references.
type node struct {
	ordinal   uint32
	docID     [16]byte // opaque caller-supplied document id
	vector    []float32
	level     int
	neighbors [][]uint32
	tombstone bool
}

// Result is one ranked hit returned by Search.
type Result struct {
	Ordinal uint32
	DocID   [16]byte
	Score   float32
}

// Params bundles the construction-time HNSW knobs.
type Params struct {
	M                int
	EfConstruction   int
	DefaultEfSearch  int
	// RebuildTombstoneRatio triggers Compact when exceeded (default 0.2).
	RebuildTombstoneRatio float64
}

// Index is the in-memory HNSW graph. The collection engine exclusively
// owns the arena; callers supply the dense ordinal for each insert rather
// than letting the index mint its own, because the same ordinal space is
// shared with internal/metadata's posting lists.
type Index struct {
	mu sync.RWMutex

	kernel distance.Kernel
	params Params

	ml  float64
	rng *rand.Rand

	arena      []*node // arena[ordinal], nil for unassigned or purged slots
	liveCount  int
	tombstoned int
	hasEntry   bool
	entry      uint32
}

// New creates an empty index for the given metric and parameters.
func New(kernel distance.Kernel, params Params, seed int64) *Index {
	if params.M <= 0 {
		params.M = 16
	}
	if params.EfConstruction <= 0 {
		params.EfConstruction = 200
	}
	if params.DefaultEfSearch <= 0 {
		params.DefaultEfSearch = 200
	}
	if params.RebuildTombstoneRatio <= 0 {
		params.RebuildTombstoneRatio = 0.2
	}
	return &Index{
		kernel: kernel,
		params: params,
		ml:     1.0 / math.Log(2.0),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (ix *Index) maxM(layer int) int {
	if layer == 0 {
		return ix.params.M * 2
	}
	return ix.params.M
}

func (ix *Index) selectLevel() int {
	level := 0
	for ix.rng.Float64() < 0.5 {
		level++
		if level > 16 {
			break
		}
	}
	return level
}

// Insert adds vec under ordinal/docID. The document is searchable before
// Insert returns. Ordinal must not already be occupied by a live node;
// re-inserting a tombstoned or purged ordinal is not supported — callers
// (the collection engine) always hand out a fresh ordinal per document.
func (ix *Index) Insert(ordinal uint32, docID [16]byte, vec []float32) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if int(ordinal) < len(ix.arena) && ix.arena[ordinal] != nil {
		return fmt.Errorf("annindex: ordinal %d already present", ordinal)
	}

	level := ix.selectLevel()
	n := &node{
		ordinal:   ordinal,
		docID:     docID,
		vector:    vec,
		level:     level,
		neighbors: make([][]uint32, level+1),
	}
	ix.growTo(ordinal)
	ix.arena[ordinal] = n
	ix.liveCount++

	if !ix.hasEntry {
		ix.hasEntry = true
		ix.entry = ordinal
		return nil
	}

	entryNode := ix.arena[ix.entry]
	currNearest := []uint32{ix.entry}
	for lc := entryNode.level; lc > level; lc-- {
		currNearest = ix.searchLayerClosest(vec, currNearest, 1, lc, nil, 0)
	}

	for lc := level; lc >= 0; lc-- {
		m := ix.maxM(lc)
		candidates := ix.searchLayer(vec, currNearest, ix.params.EfConstruction, lc, nil, 0)
		neighbors := ix.selectNeighbors(vec, candidates, m)
		n.neighbors[lc] = neighbors

		for _, nb := range neighbors {
			ix.addConnection(nb, ordinal, lc)
			nbNode := ix.arena[nb]
			if lc < len(nbNode.neighbors) && len(nbNode.neighbors[lc]) > ix.maxM(lc) {
				nbNode.neighbors[lc] = ix.selectNeighbors(nbNode.vector, nbNode.neighbors[lc], ix.maxM(lc))
			}
		}
		currNearest = neighbors
	}

	if level > entryNode.level {
		ix.entry = ordinal
	}
	return nil
}

func (ix *Index) growTo(ordinal uint32) {
	if int(ordinal) < len(ix.arena) {
		return
	}
	grown := make([]*node, ordinal+1)
	copy(grown, ix.arena)
	ix.arena = grown
}

func (ix *Index) addConnection(from, to uint32, layer int) {
	n := ix.arena[from]
	if n == nil || layer >= len(n.neighbors) {
		return
	}
	for _, x := range n.neighbors[layer] {
		if x == to {
			return
		}
	}
	n.neighbors[layer] = append(n.neighbors[layer], to)
}

// selectNeighbors keeps the m closest candidates to query (simple heuristic,
// not the full diversity-aware HNSW heuristic — matches the teacher's
// selectNeighborsHeuristic).
func (ix *Index) selectNeighbors(query []float32, candidates []uint32, m int) []uint32 {
	if len(candidates) <= m {
		return candidates
	}
	type pair struct {
		id   uint32
		dist float32
	}
	pairs := make([]pair, len(candidates))
	for i, c := range candidates {
		pairs[i] = pair{id: c, dist: ix.dist(query, ix.arena[c].vector)}
	}
	// Insertion sort is fine at these candidate-list sizes (<= efConstruction).
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].dist < pairs[j-1].dist; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
	out := make([]uint32, 0, m)
	for i := 0; i < m && i < len(pairs); i++ {
		out = append(out, pairs[i].id)
	}
	return out
}

// dist turns a kernel score into a distance where smaller is always closer,
// negating similarity scores (cosine, dot) so the heaps below work unchanged.
func (ix *Index) dist(a, b []float32) float32 {
	d := ix.kernel.Fn(a, b)
	if !ix.kernel.Ascending {
		return -d
	}
	return d
}

type heapItem struct {
	id   uint32
	dist float32
}

type minHeap []*heapItem

func (h minHeap) Len() int            { return len(h) }
func (h minHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h minHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x interface{}) { *h = append(*h, x.(*heapItem)) }
func (h *minHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// maxHeap orders by -dist so the top is the farthest of the kept set.
type maxHeap []*heapItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(*heapItem)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// searchLayer runs the greedy beam search of one HNSW layer. When mask is
// non-nil, only ordinals set in mask are admissible into the dynamic
// candidate list. The trailing int parameter is unused; adaptive ef raising
// for selective masks is done by Search, which calls this again with a
// larger ef.
func (ix *Index) searchLayer(query []float32, entryPoints []uint32, ef int, layer int, mask *roaring.Bitmap, _ int) []uint32 {
	visited := make(map[uint32]bool)
	candidates := &minHeap{}
	kept := &maxHeap{}

	admissible := func(id uint32) bool {
		n := ix.arena[id]
		if n == nil || n.tombstone {
			return false
		}
		if mask != nil && !mask.Contains(id) {
			return false
		}
		return true
	}

	for _, p := range entryPoints {
		if ix.arena[p] == nil {
			continue
		}
		dist := ix.dist(query, ix.arena[p].vector)
		heap.Push(candidates, &heapItem{id: p, dist: dist})
		visited[p] = true
		if admissible(p) {
			heap.Push(kept, &heapItem{id: p, dist: dist})
		}
	}

	for candidates.Len() > 0 {
		if kept.Len() >= ef {
			lowerBound := (*candidates)[0].dist
			if lowerBound > (*kept)[0].dist {
				break
			}
		}
		current := heap.Pop(candidates).(*heapItem)
		currentNode := ix.arena[current.id]
		if currentNode == nil || layer >= len(currentNode.neighbors) {
			continue
		}
		for _, nb := range currentNode.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			if ix.arena[nb] == nil {
				continue
			}
			dist := ix.dist(query, ix.arena[nb].vector)
			if kept.Len() < ef || dist < (*kept)[0].dist {
				heap.Push(candidates, &heapItem{id: nb, dist: dist})
				if admissible(nb) {
					heap.Push(kept, &heapItem{id: nb, dist: dist})
					if kept.Len() > ef {
						heap.Pop(kept)
					}
				}
			}
		}
	}

	result := make([]uint32, kept.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(kept).(*heapItem).id
	}
	return result
}

func (ix *Index) searchLayerClosest(query []float32, entryPoints []uint32, num, layer int, mask *roaring.Bitmap, _ int) []uint32 {
	res := ix.searchLayer(query, entryPoints, num, layer, mask, 0)
	if len(res) > num {
		return res[:num]
	}
	return res
}

// Search performs k-NN search, honoring an optional candidate mask over the
// dense ordinal space. ef, if 0, defaults to the index's DefaultEfSearch;
// ef is raised to k if smaller. When mask is highly selective the search
// adaptively widens ef up to efCap before giving up.
func (ix *Index) Search(query []float32, k int, ef int, mask *roaring.Bitmap) []Result {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if !ix.hasEntry || k <= 0 {
		return nil
	}
	if ef <= 0 {
		ef = ix.params.DefaultEfSearch
	}
	if ef < k {
		ef = k
	}

	entryNode := ix.arena[ix.entry]
	currNearest := []uint32{ix.entry}
	for layer := entryNode.level; layer > 0; layer-- {
		currNearest = ix.searchLayerClosest(query, currNearest, 1, layer, nil, 0)
	}

	efCap := ef * 8
	if efCap > ix.liveCount+ix.tombstoned {
		efCap = ix.liveCount + ix.tombstoned
	}
	candidates := ix.searchLayer(query, currNearest, ef, 0, mask, 0)
	for mask != nil && len(candidates) < k && ef < efCap {
		ef *= 2
		candidates = ix.searchLayer(query, currNearest, ef, 0, mask, 0)
	}

	results := make([]Result, 0, len(candidates))
	for _, id := range candidates {
		n := ix.arena[id]
		if n == nil || n.tombstone {
			continue
		}
		if mask != nil && !mask.Contains(id) {
			continue
		}
		results = append(results, Result{Ordinal: id, DocID: n.docID, Score: ix.kernel.Fn(query, n.vector)})
	}

	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && ix.kernel.Better(results[j].Score, results[j-1].Score); j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Delete soft-deletes ordinal (sets its tombstone bit). Idempotent: deleting
// an already-tombstoned or absent ordinal is a no-op.
func (ix *Index) Delete(ordinal uint32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.deleteLocked(ordinal)
}

func (ix *Index) deleteLocked(ordinal uint32) {
	if int(ordinal) >= len(ix.arena) || ix.arena[ordinal] == nil {
		return
	}
	n := ix.arena[ordinal]
	if n.tombstone {
		return
	}
	n.tombstone = true
	ix.liveCount--
	ix.tombstoned++

	if ix.hasEntry && ix.entry == ordinal {
		ix.hasEntry = false
		for id, cand := range ix.arena {
			if cand != nil && !cand.tombstone {
				ix.entry = uint32(id)
				ix.hasEntry = true
				break
			}
		}
	}
}

// Count returns the live (non-tombstone) node count.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.liveCount
}

// Has reports whether ordinal is a live node.
func (ix *Index) Has(ordinal uint32) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return int(ordinal) < len(ix.arena) && ix.arena[ordinal] != nil && !ix.arena[ordinal].tombstone
}

// Vector returns the stored vector for a live ordinal.
func (ix *Index) Vector(ordinal uint32) ([]float32, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if int(ordinal) >= len(ix.arena) || ix.arena[ordinal] == nil || ix.arena[ordinal].tombstone {
		return nil, false
	}
	return ix.arena[ordinal].vector, true
}

// TombstoneRatio reports the fraction of arena slots that are tombstoned,
// used by the caller to decide when to Compact.
func (ix *Index) TombstoneRatio() float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	total := ix.liveCount + ix.tombstoned
	if total == 0 {
		return 0
	}
	return float64(ix.tombstoned) / float64(total)
}

// ShouldCompact reports whether the tombstone ratio has crossed the
// configured rebuild threshold.
func (ix *Index) ShouldCompact() bool {
	return ix.TombstoneRatio() > ix.params.RebuildTombstoneRatio
}

// Compact rebuilds the graph from scratch over the currently live vectors,
// purging tombstoned nodes' storage and rewiring edges without them. It
// never runs on the request path; callers invoke it from a background
// maintenance loop. Ordinals are preserved across Compact — see DESIGN.md
// for why vectorkeep does not renumber the dense ordinal space at rebuild.
func (ix *Index) Compact() {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	type live struct {
		ordinal uint32
		docID   [16]byte
		vector  []float32
	}
	lives := make([]live, 0, ix.liveCount)
	for _, n := range ix.arena {
		if n != nil && !n.tombstone {
			lives = append(lives, live{n.ordinal, n.docID, n.vector})
		}
	}

	fresh := New(ix.kernel, ix.params, ix.rng.Int63())
	for _, l := range lives {
		_ = fresh.Insert(l.ordinal, l.docID, l.vector)
	}

	ix.arena = fresh.arena
	ix.hasEntry = fresh.hasEntry
	ix.entry = fresh.entry
	ix.liveCount = fresh.liveCount
	ix.tombstoned = 0
}
