package iconqa

import (
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"

	"github.com/Caia-Tech/caia-chartforge/pkg/geometry"
)

// Object is one placed icon in the image metadata.
type Object struct {
	Label  string       `json:"label"`
	Source string       `json:"source"`
	BBox   geometry.Box `json:"bbox"`
}

const (
	rowMargin     = 16
	rowHeightSlop = 4
	scatterInset  = 6
	placeTries    = 250
	placeMargin   = 2
	scatterFactor = 80
	borderWidth   = 2
)

// CellBorder is the outline color of grid cells.
var CellBorder = color.RGBA{200, 200, 210, 255}

func paste(dst *image.RGBA, src *image.RGBA, x, y int) geometry.Box {
	box := geometry.BoxAt(x, y, src.Bounds().Dx(), src.Bounds().Dy())
	draw.Draw(dst, box.Rect(), src, src.Bounds().Min, draw.Over)
	return box
}

func objectFor(icon Icon, box geometry.Box) Object {
	return Object{Label: icon.Label, Source: icon.Source, BBox: box}
}

// RowOptions controls LayoutRow.
type RowOptions struct {
	Min    int
	Max    int
	GapMin int
	GapMax int
	Fit    FitRange
}

// LayoutRow draws a left-to-right strip of icons centered vertically. Each
// icon is fitted into the width still free, so the row never overflows.
func LayoutRow(rng *rand.Rand, dst *image.RGBA, icons []Icon, opts RowOptions) []Object {
	if len(icons) == 0 {
		return nil
	}
	W, H := dst.Bounds().Dx(), dst.Bounds().Dy()
	n := intBetween(rng, opts.Min, opts.Max)
	midY := H / 2
	x := rowMargin

	var placed []Object
	for i := 0; i < n; i++ {
		icon := icons[rng.IntN(len(icons))]
		maxW := max(1, W-rowMargin-x)
		im, ok := fitIcon(rng, icon, opts.Fit, maxW, H-rowHeightSlop)
		if !ok {
			break
		}
		y := midY - im.Bounds().Dy()/2
		box := paste(dst, im, x, y)
		placed = append(placed, objectFor(icon, box))

		x += box.Width() + intBetween(rng, opts.GapMin, opts.GapMax)
		if x+rowMargin >= W {
			break
		}
	}
	return placed
}

// ScatterOptions controls LayoutScatter.
type ScatterOptions struct {
	Min int
	Max int
	Fit FitRange
}

// TryPlace looks for a position of a w×h box inside the canvas, at least
// margin from the edges, that does not overlap any placed box.
func TryPlace(rng *rand.Rand, canvasW, canvasH, w, h int, placed []geometry.Box, tries, margin int) (int, int, bool) {
	availW := canvasW - 2*margin - w
	availH := canvasH - 2*margin - h
	if availW < 0 || availH < 0 {
		return 0, 0, false
	}
	for i := 0; i < tries; i++ {
		x := margin + rng.IntN(availW+1)
		y := margin + rng.IntN(availH+1)
		if !geometry.Overlaps(geometry.BoxAt(x, y, w, h), placed) {
			return x, y, true
		}
	}
	return 0, 0, false
}

// LayoutScatter places up to k icons at random positions with zero pairwise
// overlap. It gives up after k*80 attempts, so crowded canvases get fewer.
func LayoutScatter(rng *rand.Rand, dst *image.RGBA, icons []Icon, opts ScatterOptions) []Object {
	if len(icons) == 0 {
		return nil
	}
	W, H := dst.Bounds().Dx(), dst.Bounds().Dy()
	k := intBetween(rng, opts.Min, opts.Max)

	var (
		boxes  []geometry.Box
		placed []Object
	)
	for tries := 0; len(placed) < k && tries < k*scatterFactor; tries++ {
		icon := icons[rng.IntN(len(icons))]
		im, ok := fitIcon(rng, icon, opts.Fit, W-scatterInset, H-scatterInset)
		if !ok {
			continue
		}
		x, y, ok := TryPlace(rng, W, H, im.Bounds().Dx(), im.Bounds().Dy(), boxes, placeTries, placeMargin)
		if !ok {
			continue
		}
		box := paste(dst, im, x, y)
		boxes = append(boxes, box)
		placed = append(placed, objectFor(icon, box))
	}
	return placed
}

// GridOptions controls LayoutGrid.
type GridOptions struct {
	Rows        int
	Cols        int
	CellPad     int
	FillMin     float64
	FillMax     float64
	RotMin      float64
	RotMax      float64
	KMin        int
	KMax        int
	Uniform     bool
	UniformFill float64
	Borders     bool
}

// ChooseGridIcons picks k distinct icons (k clamped to the pool and cell
// counts) and fills every cell by sampling among them with replacement.
func ChooseGridIcons(rng *rand.Rand, srcCount, cells, kMin, kMax int) []int {
	if srcCount <= 0 || cells <= 0 {
		return nil
	}
	kMaxEff := max(1, min(kMax, srcCount, cells))
	kMinEff := max(1, min(kMin, kMaxEff))
	k := intBetween(rng, kMinEff, kMaxEff)
	distinct := rng.Perm(srcCount)[:k]

	picks := make([]int, cells)
	for i := range picks {
		picks[i] = distinct[rng.IntN(k)]
	}
	return picks
}

// CellBox is the pixel box of cell (r, c) in a grid of cellW×cellH cells.
func CellBox(r, c, cellW, cellH int) geometry.Box {
	return geometry.BoxAt(c*cellW, r*cellH, cellW, cellH)
}

// LayoutGrid tiles the canvas with Rows×Cols cells and centers one icon in
// each. Icons are fitted through their rotated bounding box into the padded
// cell scaled by a random fill fraction, or by UniformFill when Uniform is set.
func LayoutGrid(rng *rand.Rand, dst *image.RGBA, icons []Icon, opts GridOptions) []Object {
	if len(icons) == 0 || opts.Rows < 1 || opts.Cols < 1 {
		return nil
	}
	W, H := dst.Bounds().Dx(), dst.Bounds().Dy()
	cellW, cellH := W/opts.Cols, H/opts.Rows
	innerW := max(1, cellW-2*opts.CellPad)
	innerH := max(1, cellH-2*opts.CellPad)
	cells := opts.Rows * opts.Cols
	picks := ChooseGridIcons(rng, len(icons), cells, opts.KMin, opts.KMax)

	fill := min(max(opts.UniformFill, 0), 1)
	var placed []Object
	for i := 0; i < cells; i++ {
		r, c := i/opts.Cols, i%opts.Cols
		icon := icons[picks[i]]
		deg := uniform(rng, opts.RotMin, opts.RotMax)

		maxW, maxH := int(float64(innerW)*fill), int(float64(innerH)*fill)
		if !opts.Uniform {
			maxW = int(float64(innerW) * uniform(rng, opts.FillMin, opts.FillMax))
			maxH = int(float64(innerH) * uniform(rng, opts.FillMin, opts.FillMax))
		}
		im, ok := fitExact(icon, deg, maxW, maxH)
		if !ok {
			continue
		}

		w, h := im.Bounds().Dx(), im.Bounds().Dy()
		box := paste(dst, im, c*cellW+(cellW-w)/2, r*cellH+(cellH-h)/2)
		placed = append(placed, objectFor(icon, box))

		if opts.Borders {
			drawBorder(dst, CellBox(r, c, cellW, cellH), borderWidth, CellBorder)
		}
	}
	return placed
}

// drawBorder outlines the inside of box with a frame width pixels thick.
func drawBorder(dst *image.RGBA, box geometry.Box, width int, c color.Color) {
	u := image.NewUniform(c)
	for i := 0; i < width; i++ {
		x1, y1, x2, y2 := box.X1+i, box.Y1+i, box.X2-i, box.Y2-i
		if x2-x1 < 1 || y2-y1 < 1 {
			return
		}
		draw.Draw(dst, image.Rect(x1, y1, x2, y1+1), u, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(x1, y2-1, x2, y2), u, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(x1, y1, x1+1, y2), u, image.Point{}, draw.Src)
		draw.Draw(dst, image.Rect(x2-1, y1, x2, y2), u, image.Point{}, draw.Src)
	}
}
