// Package geometry holds the box math used to place icons without overlap.
package geometry

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
)

// Box is an axis-aligned box with exclusive max corner. It serializes as
// [x1, y1, x2, y2].
type Box struct {
	X1, Y1, X2, Y2 int
}

// BoxAt builds a box from its top-left corner and size.
func BoxAt(x, y, w, h int) Box {
	return Box{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

func (b Box) Width() int  { return b.X2 - b.X1 }
func (b Box) Height() int { return b.Y2 - b.Y1 }
func (b Box) Area() int {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return 0
	}
	return b.Width() * b.Height()
}

// Rect converts to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Within reports whether b lies inside outer.
func (b Box) Within(outer Box) bool {
	return b.X1 >= outer.X1 && b.Y1 >= outer.Y1 && b.X2 <= outer.X2 && b.Y2 <= outer.Y2
}

func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X1, b.Y1, b.X2, b.Y2})
}

func (b *Box) UnmarshalJSON(data []byte) error {
	var v [4]int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("bbox: %w", err)
	}
	*b = Box{v[0], v[1], v[2], v[3]}
	return nil
}

// Intersection area of two boxes.
func Intersection(a, b Box) int {
	w := min(a.X2, b.X2) - max(a.X1, b.X1)
	h := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU is intersection over union.
func IoU(a, b Box) float64 {
	inter := Intersection(a, b)
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Overlaps reports whether box overlaps any of placed.
func Overlaps(box Box, placed []Box) bool {
	for _, p := range placed {
		if IoU(box, p) > 0 {
			return true
		}
	}
	return false
}

// RotatedSize is the axis-aligned bounding box of a w×h rectangle rotated by
// deg degrees.
func RotatedSize(w, h, deg float64) (float64, float64) {
	rad := deg * math.Pi / 180
	c := math.Abs(math.Cos(rad))
	s := math.Abs(math.Sin(rad))
	return w*c + h*s, w*s + h*c
}

// ScaleLimit is the largest uniform scale at which a w×h rectangle rotated
// by deg still fits in maxW×maxH. Invalid input yields 0.
func ScaleLimit(w, h, maxW, maxH, deg float64) float64 {
	if w <= 0 || h <= 0 || maxW <= 0 || maxH <= 0 {
		return 0
	}
	rw, rh := RotatedSize(w, h, deg)
	if rw <= 0 || rh <= 0 {
		return 0
	}
	return math.Min(maxW/rw, maxH/rh)
}

// FitScale samples a scale uniformly from [sMin, sMax] clipped to the
// rotated-fit limit. When the limit is below sMin the limit itself is used.
func FitScale(rng *rand.Rand, w, h, maxW, maxH, deg, sMin, sMax float64) float64 {
	limit := ScaleLimit(w, h, maxW, maxH, deg)
	hi := math.Min(sMax, limit)
	lo := math.Min(sMin, hi)
	if hi <= lo {
		return hi
	}
	return lo + rng.Float64()*(hi-lo)
}
