package filterlang

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorkeep/vectorkeep/internal/metadata"
)

func buildIndex() *metadata.Index {
	idx := metadata.New()
	idx.IndexMetadata(0, map[string]any{"tag": "x"})
	idx.IndexMetadata(1, map[string]any{"tag": "y"})
	idx.IndexMetadata(2, map[string]any{"tag": "x"})
	return idx
}

func TestMustIntersection(t *testing.T) {
	idx := buildIndex()
	n, err := Parse([]byte(`{"kind":"must","children":[{"kind":"term","field":"tag","value":"x"}]}`))
	require.NoError(t, err)

	bm, err := Compile(n, idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), bm.GetCardinality())
}

func TestMustNotComplement(t *testing.T) {
	idx := buildIndex()
	n, err := Parse([]byte(`{"kind":"must_not","children":[{"kind":"term","field":"tag","value":"x"}]}`))
	require.NoError(t, err)

	bm, err := Compile(n, idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), bm.GetCardinality())
	assert.True(t, bm.Contains(1))
}

func TestShouldUnion(t *testing.T) {
	idx := buildIndex()
	n, err := Parse([]byte(`{"kind":"should","children":[{"kind":"term","field":"tag","value":"x"},{"kind":"term","field":"tag","value":"y"}]}`))
	require.NoError(t, err)

	bm, err := Compile(n, idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), bm.GetCardinality())
}

func TestInvalidFilterRejected(t *testing.T) {
	_, err := Parse([]byte(`{"kind":"term"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`{"kind":"bogus"}`))
	assert.Error(t, err)
}

func TestCacheStoresASTNotBitmap(t *testing.T) {
	c := NewCache(10, time.Minute)
	raw := []byte(`{"kind":"term","field":"tag","value":"x"}`)

	n1, err := c.ParseCached(raw)
	require.NoError(t, err)
	n2, err := c.ParseCached(raw)
	require.NoError(t, err)
	assert.Same(t, n1, n2)
	assert.Equal(t, 1, c.Len())
}
