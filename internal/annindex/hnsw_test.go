package annindex

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorkeep/vectorkeep/internal/distance"
)

func docID(n byte) [16]byte {
	var id [16]byte
	id[0] = n
	return id
}

func TestBasicRoundtrip(t *testing.T) {
	ix := New(distance.L2Kernel, Params{M: 16, EfConstruction: 200, DefaultEfSearch: 200}, 1)

	require.NoError(t, ix.Insert(0, docID(1), []float32{1, 0, 0}))
	require.NoError(t, ix.Insert(1, docID(2), []float32{0, 1, 0}))
	require.NoError(t, ix.Insert(2, docID(3), []float32{0, 0, 1}))

	results := ix.Search([]float32{1, 0, 0}, 2, 0, nil)
	require.Len(t, results, 2)
	assert.Equal(t, docID(1), results[0].DocID)
	assert.InDelta(t, 0.0, float64(results[0].Score), 1e-5)
}

func TestDeleteIsIdempotentAndSoft(t *testing.T) {
	ix := New(distance.L2Kernel, Params{M: 16, EfConstruction: 100, DefaultEfSearch: 50}, 2)
	require.NoError(t, ix.Insert(0, docID(1), []float32{1, 0}))
	require.NoError(t, ix.Insert(1, docID(2), []float32{0, 1}))

	assert.Equal(t, 2, ix.Count())
	ix.Delete(0)
	assert.Equal(t, 1, ix.Count())
	ix.Delete(0) // idempotent
	assert.Equal(t, 1, ix.Count())
	ix.Delete(99) // absent ordinal, no-op
	assert.Equal(t, 1, ix.Count())

	results := ix.Search([]float32{1, 0}, 5, 0, nil)
	for _, r := range results {
		assert.NotEqual(t, docID(1), r.DocID)
	}
}

func TestFilteredSearchExcludesMaskedOut(t *testing.T) {
	ix := New(distance.L2Kernel, Params{M: 16, EfConstruction: 100, DefaultEfSearch: 50}, 3)
	require.NoError(t, ix.Insert(0, docID(1), []float32{0, 0, 1}))
	require.NoError(t, ix.Insert(1, docID(2), []float32{0, 1, 0}))
	require.NoError(t, ix.Insert(2, docID(3), []float32{0, 0, 1}))

	mask := roaring.New()
	mask.Add(0)
	mask.Add(2)

	results := ix.Search([]float32{0, 0, 1}, 3, 0, mask)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Contains(t, [][16]byte{docID(1), docID(3)}, r.DocID)
	}
}

func TestSerializeRoundtrip(t *testing.T) {
	ix := New(distance.CosineKernel, Params{M: 8, EfConstruction: 64, DefaultEfSearch: 32}, 4)
	for i := uint32(0); i < 20; i++ {
		vec := []float32{float32(i), float32(i % 3), float32(i % 5)}
		require.NoError(t, ix.Insert(i, docID(byte(i)), vec))
	}
	ix.Delete(5)

	var buf bytes.Buffer
	require.NoError(t, ix.Serialize(&buf))

	restored := New(distance.CosineKernel, Params{}, 0)
	require.NoError(t, restored.Deserialize(bytes.NewReader(buf.Bytes())))

	assert.Equal(t, ix.Count(), restored.Count())
	assert.False(t, restored.Has(5))
	assert.True(t, restored.Has(6))

	q := []float32{10, 1, 0}
	want := ix.Search(q, 5, 0, nil)
	got := restored.Search(q, 5, 0, nil)
	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].DocID, got[i].DocID)
	}
}

func TestRecallAgainstBruteForce(t *testing.T) {
	if testing.Short() {
		t.Skip("recall benchmark skipped in short mode")
	}
	const (
		n   = 5000
		dim = 32
		k   = 10
	)
	rng := rand.New(rand.NewSource(42))
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rng.Float32()
		}
		vectors[i] = v
	}

	ix := New(distance.CosineKernel, Params{M: 16, EfConstruction: 200, DefaultEfSearch: 200}, 7)
	for i, v := range vectors {
		require.NoError(t, ix.Insert(uint32(i), docID(byte(i%256)), v))
	}

	queries := 10
	var totalRecall float64
	for q := 0; q < queries; q++ {
		query := vectors[rng.Intn(n)]

		// brute force
		type scored struct {
			ordinal uint32
			score   float32
		}
		brute := make([]scored, n)
		for i, v := range vectors {
			brute[i] = scored{uint32(i), distance.Cosine(query, v)}
		}
		for i := 1; i < len(brute); i++ {
			for j := i; j > 0 && brute[j].score > brute[j-1].score; j-- {
				brute[j], brute[j-1] = brute[j-1], brute[j]
			}
		}
		exact := map[uint32]bool{}
		for i := 0; i < k; i++ {
			exact[brute[i].ordinal] = true
		}

		got := ix.Search(query, k, 200, nil)
		hit := 0
		for _, r := range got {
			if exact[r.Ordinal] {
				hit++
			}
		}
		totalRecall += float64(hit) / float64(k)
	}
	meanRecall := totalRecall / float64(queries)
	assert.GreaterOrEqual(t, meanRecall, 0.90, "mean recall@%d = %f", k, meanRecall)
}

func TestCompactPurgesTombstones(t *testing.T) {
	ix := New(distance.L2Kernel, Params{M: 8, EfConstruction: 64, DefaultEfSearch: 32, RebuildTombstoneRatio: 0.1}, 5)
	for i := uint32(0); i < 10; i++ {
		require.NoError(t, ix.Insert(i, docID(byte(i)), []float32{float32(i), 0}))
	}
	for i := uint32(0); i < 5; i++ {
		ix.Delete(i)
	}
	assert.True(t, ix.ShouldCompact())
	ix.Compact()
	assert.Equal(t, 0.0, ix.TombstoneRatio())
	assert.Equal(t, 5, ix.Count())
	for i := uint32(0); i < 5; i++ {
		assert.False(t, ix.Has(i))
	}
	for i := uint32(5); i < 10; i++ {
		assert.True(t, ix.Has(i))
	}
}
