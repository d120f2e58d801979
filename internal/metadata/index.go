// Package metadata implements a per-field inverted index: keyword equality
// via posting bitmaps, numeric range via a sorted slice scanned with
// binary search. It is the building block internal/filterlang compiles
// filter ASTs against.
package metadata

import (
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// numericEntry pairs a document ordinal with one field's numeric value, for
// range queries.
type numericEntry struct {
	ordinal uint32
	value   float64
}

// Index stores one collection's metadata postings.
type Index struct {
	mu sync.RWMutex

	// terms[field][value] -> bitmap of ordinals with payload[field] == value.
	terms map[string]map[string]*roaring.Bitmap

	// numeric[field] -> entries sorted by value, for range scans.
	numeric map[string][]numericEntry

	// live is the set of ordinals not yet deleted; must_not evaluates
	// relative to this set.
	live *roaring.Bitmap
}

// New creates an empty metadata index.
func New() *Index {
	return &Index{
		terms:   make(map[string]map[string]*roaring.Bitmap),
		numeric: make(map[string][]numericEntry),
		live:    roaring.New(),
	}
}

// IndexMetadata indexes payload's fields under ordinal. Called
// synchronously with every ANN insert.
func (idx *Index) IndexMetadata(ordinal uint32, payload map[string]any) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.live.Add(ordinal)
	for field, v := range payload {
		switch val := v.(type) {
		case string:
			idx.addTerm(field, val, ordinal)
		case bool:
			idx.addTerm(field, fmt.Sprintf("%t", val), ordinal)
		case float64:
			idx.addNumeric(field, val, ordinal)
		case int:
			idx.addNumeric(field, float64(val), ordinal)
		case int64:
			idx.addNumeric(field, float64(val), ordinal)
		default:
			idx.addTerm(field, fmt.Sprintf("%v", val), ordinal)
		}
	}
}

func (idx *Index) addTerm(field, value string, ordinal uint32) {
	byValue, ok := idx.terms[field]
	if !ok {
		byValue = make(map[string]*roaring.Bitmap)
		idx.terms[field] = byValue
	}
	bm, ok := byValue[value]
	if !ok {
		bm = roaring.New()
		byValue[value] = bm
	}
	bm.Add(ordinal)
}

func (idx *Index) addNumeric(field string, value float64, ordinal uint32) {
	entries := idx.numeric[field]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].value >= value })
	entries = append(entries, numericEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = numericEntry{ordinal: ordinal, value: value}
	idx.numeric[field] = entries
}

// Remove drops ordinal from the live set and every posting it appears in.
// Called when a document is soft-deleted so must_not queries stop treating
// it as live.
func (idx *Index) Remove(ordinal uint32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.live.Remove(ordinal)
	for _, byValue := range idx.terms {
		for _, bm := range byValue {
			bm.Remove(ordinal)
		}
	}
	for field, entries := range idx.numeric {
		out := entries[:0]
		for _, e := range entries {
			if e.ordinal != ordinal {
				out = append(out, e)
			}
		}
		idx.numeric[field] = out
	}
}

// LookupTerm returns the (copied) bitmap of ordinals with field == value.
func (idx *Index) LookupTerm(field, value string) *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	byValue, ok := idx.terms[field]
	if !ok {
		return roaring.New()
	}
	bm, ok := byValue[value]
	if !ok {
		return roaring.New()
	}
	return bm.Clone()
}

// RangeBounds expresses an inclusive/exclusive numeric range; a nil bound
// means unbounded on that side.
type RangeBounds struct {
	GTE, GT *float64
	LTE, LT *float64
}

// LookupRange returns the bitmap of ordinals whose field value satisfies
// bounds.
func (idx *Index) LookupRange(field string, bounds RangeBounds) *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	entries := idx.numeric[field]
	lo := 0
	if bounds.GTE != nil {
		lo = sort.Search(len(entries), func(i int) bool { return entries[i].value >= *bounds.GTE })
	} else if bounds.GT != nil {
		lo = sort.Search(len(entries), func(i int) bool { return entries[i].value > *bounds.GT })
	}
	hi := len(entries)
	if bounds.LTE != nil {
		hi = sort.Search(len(entries), func(i int) bool { return entries[i].value > *bounds.LTE })
	} else if bounds.LT != nil {
		hi = sort.Search(len(entries), func(i int) bool { return entries[i].value >= *bounds.LT })
	}

	out := roaring.New()
	for i := lo; i < hi && i < len(entries); i++ {
		out.Add(entries[i].ordinal)
	}
	return out
}

// Live returns a copy of the live-ordinal bitmap, the universe must_not
// complements against.
func (idx *Index) Live() *roaring.Bitmap {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.live.Clone()
}
