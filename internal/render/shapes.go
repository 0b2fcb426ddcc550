package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// arcSteps is the number of segments per full turn used to flatten arcs.
const arcSteps = 360

// point on a circle; angles are in degrees, counterclockwise from +x with
// the y axis pointing down.
func polar(cx, cy, r, deg float64) (float32, float32) {
	rad := deg * math.Pi / 180
	return float32(cx + r*math.Cos(rad)), float32(cy - r*math.Sin(rad))
}

// fillWedge fills the ring sector between inner and outer radius sweeping
// from start to end degrees. inner == 0 gives a pie wedge.
func fillWedge(dst *image.RGBA, cx, cy, inner, outer, start, end float64, c color.Color) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over

	steps := int(math.Ceil(math.Abs(end-start) / 360 * arcSteps))
	if steps < 1 {
		steps = 1
	}
	delta := (end - start) / float64(steps)

	if inner <= 0 {
		z.MoveTo(float32(cx), float32(cy))
		for i := 0; i <= steps; i++ {
			z.LineTo(polar(cx, cy, outer, start+delta*float64(i)))
		}
	} else {
		z.MoveTo(polar(cx, cy, outer, start))
		for i := 1; i <= steps; i++ {
			z.LineTo(polar(cx, cy, outer, start+delta*float64(i)))
		}
		for i := steps; i >= 0; i-- {
			z.LineTo(polar(cx, cy, inner, start+delta*float64(i)))
		}
	}
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

// strokeLine draws a line of the given width as a filled quad.
func strokeLine(dst *image.RGBA, x1, y1, x2, y2, width float64, c color.Color) {
	dx, dy := x2-x1, y2-y1
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*width/2, dx/l*width/2

	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over
	z.MoveTo(float32(x1+nx), float32(y1+ny))
	z.LineTo(float32(x2+nx), float32(y2+ny))
	z.LineTo(float32(x2-nx), float32(y2-ny))
	z.LineTo(float32(x1-nx), float32(y1-ny))
	z.ClosePath()
	z.Draw(dst, b, image.NewUniform(c), image.Point{})
}

func fillRect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

// Flatten composites img over a solid background.
func Flatten(img image.Image, bg color.Color) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Over)
	return out
}
