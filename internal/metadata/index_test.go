package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTermLookup(t *testing.T) {
	idx := New()
	idx.IndexMetadata(0, map[string]any{"tag": "x"})
	idx.IndexMetadata(1, map[string]any{"tag": "y"})
	idx.IndexMetadata(2, map[string]any{"tag": "x"})

	bm := idx.LookupTerm("tag", "x")
	assert.Equal(t, uint64(2), bm.GetCardinality())
	assert.True(t, bm.Contains(0))
	assert.True(t, bm.Contains(2))
	assert.False(t, bm.Contains(1))
}

func TestRangeLookup(t *testing.T) {
	idx := New()
	idx.IndexMetadata(0, map[string]any{"price": 10.0})
	idx.IndexMetadata(1, map[string]any{"price": 20.0})
	idx.IndexMetadata(2, map[string]any{"price": 30.0})

	gte := 15.0
	lte := 25.0
	bm := idx.LookupRange("price", RangeBounds{GTE: &gte, LTE: &lte})
	assert.Equal(t, uint64(1), bm.GetCardinality())
	assert.True(t, bm.Contains(1))
}

func TestRemoveDropsFromPostingsAndLive(t *testing.T) {
	idx := New()
	idx.IndexMetadata(0, map[string]any{"tag": "x", "price": 5.0})
	idx.Remove(0)

	assert.Equal(t, uint64(0), idx.LookupTerm("tag", "x").GetCardinality())
	assert.False(t, idx.Live().Contains(0))
	gte := 0.0
	assert.Equal(t, uint64(0), idx.LookupRange("price", RangeBounds{GTE: &gte}).GetCardinality())
}
