package geometry

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIoU(t *testing.T) {
	a := BoxAt(0, 0, 10, 10)

	tests := []struct {
		name string
		b    Box
		want float64
	}{
		{"identical", BoxAt(0, 0, 10, 10), 1},
		{"touching edge", BoxAt(10, 0, 10, 10), 0},
		{"disjoint", BoxAt(20, 20, 5, 5), 0},
		{"half", BoxAt(5, 0, 10, 10), 50.0 / 150.0},
		{"contained", BoxAt(0, 0, 5, 5), 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, IoU(tt.b, a), 1e-9)
		})
	}
}

func TestOverlaps(t *testing.T) {
	placed := []Box{BoxAt(0, 0, 10, 10), BoxAt(50, 50, 10, 10)}
	assert.True(t, Overlaps(BoxAt(55, 55, 10, 10), placed))
	assert.False(t, Overlaps(BoxAt(10, 10, 40, 40), placed))
	assert.False(t, Overlaps(BoxAt(0, 0, 1, 1), nil))
}

func TestBoxJSON(t *testing.T) {
	data, err := json.Marshal(BoxAt(3, 4, 10, 20))
	require.NoError(t, err)
	assert.JSONEq(t, `[3,4,13,24]`, string(data))

	var b Box
	require.NoError(t, json.Unmarshal(data, &b))
	assert.Equal(t, BoxAt(3, 4, 10, 20), b)
}

func TestRotatedSize(t *testing.T) {
	w, h := RotatedSize(40, 20, 0)
	assert.InDelta(t, 40, w, 1e-9)
	assert.InDelta(t, 20, h, 1e-9)

	w, h = RotatedSize(40, 20, 90)
	assert.InDelta(t, 20, w, 1e-9)
	assert.InDelta(t, 40, h, 1e-9)

	w, h = RotatedSize(10, 10, 45)
	assert.InDelta(t, 10*math.Sqrt2, w, 1e-9)
	assert.InDelta(t, 10*math.Sqrt2, h, 1e-9)
}

func TestScaleLimit_IsTight(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	const eps = 1e-6

	for i := 0; i < 500; i++ {
		w := 1 + rng.Float64()*300
		h := 1 + rng.Float64()*300
		maxW := 1 + rng.Float64()*500
		maxH := 1 + rng.Float64()*500
		deg := -180 + rng.Float64()*360

		s := ScaleLimit(w, h, maxW, maxH, deg)
		require.Greater(t, s, 0.0)

		rw, rh := RotatedSize(w*s, h*s, deg)
		assert.LessOrEqual(t, rw, maxW+eps)
		assert.LessOrEqual(t, rh, maxH+eps)

		bigger := s * (1 + 1e-6)
		bw, bh := RotatedSize(w*bigger, h*bigger, deg)
		assert.True(t, bw > maxW || bh > maxH, "scale %v should overflow", bigger)
	}
}

func TestScaleLimit_InvalidInput(t *testing.T) {
	assert.Equal(t, 0.0, ScaleLimit(0, 10, 10, 10, 0))
	assert.Equal(t, 0.0, ScaleLimit(10, 10, -1, 10, 0))
}

func TestFitScale(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))

	for i := 0; i < 200; i++ {
		s := FitScale(rng, 100, 50, 400, 400, 30, 0.5, 1.5)
		assert.GreaterOrEqual(t, s, 0.5)
		assert.LessOrEqual(t, s, 1.5)
	}

	// the fit limit wins over the configured range
	limit := ScaleLimit(100, 100, 50, 50, 0)
	assert.InDelta(t, limit, FitScale(rng, 100, 100, 50, 50, 0, 0.8, 1.2), 1e-9)
}
