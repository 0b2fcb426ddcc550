package iconqa

import (
	"image"
	"math"
	"math/rand/v2"

	"github.com/Caia-Tech/caia-chartforge/pkg/geometry"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Rotations below this many degrees are drawn unrotated.
const minRotation = 0.01

// Transform scales src by scale and rotates it counter-clockwise by deg.
// The result is sized to the rotated bounding box, capped at maxW×maxH when
// those are positive.
func Transform(src image.Image, scale, deg float64, maxW, maxH int) *image.RGBA {
	b := src.Bounds()
	nw := max(1, int(math.Floor(float64(b.Dx())*scale)))
	nh := max(1, int(math.Floor(float64(b.Dy())*scale)))
	if maxW > 0 {
		nw = min(nw, maxW)
	}
	if maxH > 0 {
		nh = min(nh, maxH)
	}

	scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, b, xdraw.Src, nil)
	if math.Abs(deg) <= minRotation {
		return scaled
	}

	rw, rh := geometry.RotatedSize(float64(nw), float64(nh), deg)
	w := max(1, int(math.Ceil(rw-1e-6)))
	h := max(1, int(math.Ceil(rh-1e-6)))
	if maxW > 0 {
		w = min(w, maxW)
	}
	if maxH > 0 {
		h = min(h, maxH)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	sx, sy := float64(nw)/2, float64(nh)/2
	dx, dy := float64(w)/2, float64(h)/2
	// source -> destination, rotating about both centers (y axis points down)
	m := f64.Aff3{
		c, s, dx - c*sx - s*sy,
		-s, c, dy + s*sx - c*sy,
	}
	xdraw.BiLinear.Transform(dst, m, scaled, scaled.Bounds(), xdraw.Over, nil)
	return dst
}

// FitRange bounds the random scale and rotation of placed icons.
type FitRange struct {
	ScaleMin float64
	ScaleMax float64
	RotMin   float64
	RotMax   float64
}

// fitIcon picks a rotation, clamps the scale so the rotated icon fits
// maxW×maxH and transforms the icon. The scale may drop below ScaleMin to fit.
func fitIcon(rng *rand.Rand, icon Icon, fr FitRange, maxW, maxH int) (*image.RGBA, bool) {
	if maxW <= 0 || maxH <= 0 {
		return nil, false
	}
	deg := uniform(rng, fr.RotMin, fr.RotMax)
	b := icon.Image.Bounds()
	s := geometry.FitScale(rng, float64(b.Dx()), float64(b.Dy()), float64(maxW), float64(maxH), deg, fr.ScaleMin, fr.ScaleMax)
	if s <= 0 {
		return nil, false
	}
	return Transform(icon.Image, s, deg, maxW, maxH), true
}

// fitExact scales the icon so its rotated bounding box just fits maxW×maxH.
func fitExact(icon Icon, deg float64, maxW, maxH int) (*image.RGBA, bool) {
	b := icon.Image.Bounds()
	s := geometry.ScaleLimit(float64(b.Dx()), float64(b.Dy()), float64(maxW), float64(maxH), deg)
	if s <= 0 {
		return nil, false
	}
	return Transform(icon.Image, s, deg, maxW, maxH), true
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

func intBetween(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}
