package textlayout

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// LineSpacing is applied to ascent+descent to get the line pitch.
const LineSpacing = 1.12

// FaceMeasurer measures text with a font.Face.
type FaceMeasurer struct {
	Face font.Face
}

// NewFaceMeasurer wraps a font face.
func NewFaceMeasurer(face font.Face) *FaceMeasurer {
	return &FaceMeasurer{Face: face}
}

func (f *FaceMeasurer) Advance(s string) int {
	return font.MeasureString(f.Face, s).Ceil()
}

func (f *FaceMeasurer) LineHeight() int {
	m := f.Face.Metrics()
	h := float64(m.Ascent+m.Descent) / 64
	return int(math.Floor(h * LineSpacing))
}

// Ascent in whole pixels.
func (f *FaceMeasurer) Ascent() int {
	return f.Face.Metrics().Ascent.Ceil()
}

// DrawLines draws lines top-down starting with the top of the first line at
// (x, y). It returns the y below the last line.
func DrawLines(dst *image.RGBA, f *FaceMeasurer, lines []string, x, y int, c color.Color) int {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: f.Face}
	lh := f.LineHeight()
	asc := f.Ascent()
	for _, line := range lines {
		d.Dot = fixed.P(x, y+asc)
		d.DrawString(line)
		y += lh
	}
	return y
}

// DrawCentered draws s horizontally centered on cx with its baseline at
// baseline.
func DrawCentered(dst *image.RGBA, f *FaceMeasurer, s string, cx, baseline int, c color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: f.Face}
	d.Dot = fixed.P(cx-f.Advance(s)/2, baseline)
	d.DrawString(s)
}

// DrawAt draws s with its baseline at (x, baseline).
func DrawAt(dst *image.RGBA, f *FaceMeasurer, s string, x, baseline int, c color.Color) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(c), Face: f.Face}
	d.Dot = fixed.P(x, baseline)
	d.DrawString(s)
}
