package iconqa

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Caia-Tech/caia-chartforge/pkg/geometry"
)

func solidIcon(label string, w, h int, c color.RGBA) Icon {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return Icon{Label: label, Source: "pool/" + label + ".png", Image: img}
}

func testIcons() []Icon {
	return []Icon{
		solidIcon("apple", 40, 40, color.RGBA{200, 30, 30, 255}),
		solidIcon("pencil", 64, 16, color.RGBA{240, 200, 0, 255}),
		solidIcon("tree", 30, 56, color.RGBA{20, 150, 40, 255}),
	}
}

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func canvas(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestTransform_FitsRotatedBox(t *testing.T) {
	src := solidIcon("bar", 80, 20, color.RGBA{0, 0, 0, 255}).Image
	for _, deg := range []float64{0, 10, 30, 45, 90, -25} {
		s := geometry.ScaleLimit(80, 20, 50, 40, deg)
		out := Transform(src, s, deg, 50, 40)
		assert.LessOrEqual(t, out.Bounds().Dx(), 50, "deg=%v", deg)
		assert.LessOrEqual(t, out.Bounds().Dy(), 40, "deg=%v", deg)
		assert.Positive(t, out.Bounds().Dx())
	}

	// unrotated scaling keeps the aspect ratio
	out := Transform(src, 0.5, 0, 0, 0)
	assert.Equal(t, image.Rect(0, 0, 40, 10), out.Bounds())
}

func TestTryPlace(t *testing.T) {
	rng := newRNG(1)
	_, _, ok := TryPlace(rng, 100, 100, 97, 10, nil, placeTries, placeMargin)
	assert.False(t, ok, "box wider than the canvas minus margins")

	x, y, ok := TryPlace(rng, 100, 100, 96, 96, nil, placeTries, placeMargin)
	require.True(t, ok)
	assert.Equal(t, 2, x)
	assert.Equal(t, 2, y)

	full := []geometry.Box{geometry.BoxAt(0, 0, 100, 100)}
	_, _, ok = TryPlace(rng, 100, 100, 10, 10, full, placeTries, placeMargin)
	assert.False(t, ok)
}

func TestLayoutScatter_NoOverlap(t *testing.T) {
	icons := testIcons()
	for seed := uint64(1); seed <= 25; seed++ {
		dst := canvas(768, 256)
		objs := LayoutScatter(newRNG(seed), dst, icons, ScatterOptions{
			Min: 8, Max: 12,
			Fit: FitRange{ScaleMin: 0.6, ScaleMax: 1.2, RotMin: -30, RotMax: 30},
		})
		require.NotEmpty(t, objs)
		assert.LessOrEqual(t, len(objs), 12)

		bounds := geometry.BoxAt(0, 0, 768, 256)
		for i := range objs {
			assert.True(t, objs[i].BBox.Within(bounds), "seed %d: %v", seed, objs[i].BBox)
			for j := i + 1; j < len(objs); j++ {
				assert.Zero(t, geometry.IoU(objs[i].BBox, objs[j].BBox), "seed %d: %d vs %d", seed, i, j)
			}
		}
	}
}

func TestLayoutScatter_CrowdedCanvasPlacesFewer(t *testing.T) {
	big := []Icon{solidIcon("block", 90, 90, color.RGBA{0, 0, 255, 255})}
	objs := LayoutScatter(newRNG(3), canvas(200, 100), big, ScatterOptions{
		Min: 10, Max: 10,
		Fit: FitRange{ScaleMin: 1, ScaleMax: 1},
	})
	assert.NotEmpty(t, objs)
	assert.Less(t, len(objs), 10)
	for i := range objs {
		for j := i + 1; j < len(objs); j++ {
			assert.Zero(t, geometry.IoU(objs[i].BBox, objs[j].BBox))
		}
	}
}

func TestLayoutRow(t *testing.T) {
	icons := testIcons()
	for seed := uint64(1); seed <= 10; seed++ {
		dst := canvas(768, 256)
		objs := LayoutRow(newRNG(seed), dst, icons, RowOptions{
			Min: 8, Max: 14, GapMin: 6, GapMax: 18,
			Fit: FitRange{ScaleMin: 0.6, ScaleMax: 1.2},
		})
		require.NotEmpty(t, objs)
		assert.LessOrEqual(t, len(objs), 14)

		inner := geometry.Box{X1: rowMargin, Y1: 0, X2: 768 - rowMargin, Y2: 256}
		for i, o := range objs {
			assert.True(t, o.BBox.Within(inner), "seed %d: %v", seed, o.BBox)
			if i > 0 {
				assert.GreaterOrEqual(t, o.BBox.X1, objs[i-1].BBox.X2+6)
			}
		}
	}
}

func TestChooseGridIcons(t *testing.T) {
	rng := newRNG(7)
	for i := 0; i < 50; i++ {
		picks := ChooseGridIcons(rng, 10, 12, 1, 4)
		require.Len(t, picks, 12)
		distinct := map[int]bool{}
		for _, p := range picks {
			assert.True(t, p >= 0 && p < 10)
			distinct[p] = true
		}
		assert.LessOrEqual(t, len(distinct), 4)
	}

	same := ChooseGridIcons(rng, 10, 6, 1, 1)
	for _, p := range same {
		assert.Equal(t, same[0], p)
	}

	// k is clamped to the pool size
	small := ChooseGridIcons(rng, 2, 9, 5, 8)
	for _, p := range small {
		assert.Less(t, p, 2)
	}
	assert.Nil(t, ChooseGridIcons(rng, 0, 4, 1, 4))
}

func TestLayoutGrid_BoxesInsideCells(t *testing.T) {
	icons := testIcons()
	tests := []struct {
		name    string
		rows    int
		cols    int
		rot     float64
		uniform bool
	}{
		{"1x4 upright", 1, 4, 0, false},
		{"2x3 rotated", 2, 3, 40, false},
		{"3x5 rotated uniform", 3, 5, 25, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const W, H, pad = 768, 256, 10
			objs := LayoutGrid(newRNG(11), canvas(W, H), icons, GridOptions{
				Rows: tt.rows, Cols: tt.cols, CellPad: pad,
				FillMin: 0.85, FillMax: 0.95,
				RotMin: -tt.rot, RotMax: tt.rot,
				KMin: 1, KMax: 4,
				Uniform: tt.uniform, UniformFill: 0.9,
				Borders: true,
			})
			require.Len(t, objs, tt.rows*tt.cols)

			cellW, cellH := W/tt.cols, H/tt.rows
			for i, o := range objs {
				r, c := i/tt.cols, i%tt.cols
				cell := CellBox(r, c, cellW, cellH)
				padded := geometry.Box{X1: cell.X1 + pad, Y1: cell.Y1 + pad, X2: cell.X2 - pad, Y2: cell.Y2 - pad}
				assert.True(t, o.BBox.Within(padded), "cell %d: %v not in %v", i, o.BBox, padded)
			}
		})
	}
}

func TestLayoutGrid_DrawsBorders(t *testing.T) {
	dst := canvas(400, 100)
	LayoutGrid(newRNG(2), dst, testIcons(), GridOptions{
		Rows: 1, Cols: 4, CellPad: 10, FillMin: 0.8, FillMax: 0.9, KMin: 1, KMax: 1, Borders: true,
	})
	assert.Equal(t, CellBorder, dst.RGBAAt(0, 50))
	assert.Equal(t, CellBorder, dst.RGBAAt(1, 50))
	assert.Equal(t, CellBorder, dst.RGBAAt(99, 50))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(3, 50))
}

func TestLayouts_EmptyPool(t *testing.T) {
	rng := newRNG(1)
	assert.Empty(t, LayoutRow(rng, canvas(100, 100), nil, RowOptions{Min: 1, Max: 2}))
	assert.Empty(t, LayoutScatter(rng, canvas(100, 100), nil, ScatterOptions{Min: 1, Max: 2}))
	assert.Empty(t, LayoutGrid(rng, canvas(100, 100), nil, GridOptions{Rows: 1, Cols: 1}))
}
