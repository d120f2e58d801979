package distance

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestL2(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"unit-axis", []float32{1, 0, 0}, []float32{0, 1, 0}, float32(math.Sqrt(2))},
		{"zero-vector", []float32{0, 0}, []float32{3, 4}, 5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := L2(c.a, c.b)
			assert.InDelta(t, float64(c.want), float64(got), 1e-5)
		})
	}
}

func TestCosineZeroVector(t *testing.T) {
	got := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	assert.Equal(t, float32(0.0), got)
	assert.False(t, math.IsNaN(float64(got)))
}

func TestCosineIdentical(t *testing.T) {
	got := Cosine([]float32{1, 1, 0}, []float32{1, 1, 0})
	assert.InDelta(t, 1.0, float64(got), 1e-5)
}

func TestDot(t *testing.T) {
	got := Dot([]float32{1, 2, 3}, []float32{4, 5, 6})
	assert.InDelta(t, 32.0, float64(got), 1e-5)
}

func TestKernelOrdering(t *testing.T) {
	assert.True(t, L2Kernel.Ascending)
	assert.False(t, CosineKernel.Ascending)
	assert.False(t, DotKernel.Ascending)

	assert.True(t, L2Kernel.Better(1.0, 2.0))
	assert.True(t, CosineKernel.Better(0.9, 0.1))
}

func TestSelectKernel(t *testing.T) {
	k, err := SelectKernel("cosine")
	assert.NoError(t, err)
	assert.Equal(t, "cosine", k.Name)

	_, err = SelectKernel("unknown")
	assert.Error(t, err)
}
