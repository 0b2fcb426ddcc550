package iconqa

import (
	"fmt"
	"image/color"
	"math/rand/v2"
	"strings"

	"github.com/Caia-Tech/caia-chartforge/pkg/chart"
	"golang.org/x/image/colornames"
)

// Background picks the canvas fill for each image.
type Background struct {
	random bool
	fixed  color.RGBA
}

// ParseBackground accepts white, random (a pastel per image), #RRGGBB / #RGB
// or a CSS color name.
func ParseBackground(spec string) (Background, error) {
	s := strings.ToLower(strings.TrimSpace(spec))
	switch {
	case s == "" || s == "white":
		return Background{fixed: color.RGBA{255, 255, 255, 255}}, nil
	case s == "random":
		return Background{random: true}, nil
	case strings.HasPrefix(s, "#"):
		c, err := chart.ParseHex(s)
		if err != nil {
			return Background{}, fmt.Errorf("invalid background %q: %w", spec, err)
		}
		return Background{fixed: c}, nil
	}
	c, ok := colornames.Map[s]
	if !ok {
		return Background{}, fmt.Errorf("unknown background color %q", spec)
	}
	return Background{fixed: c}, nil
}

// Color returns the fill for the next image.
func (b Background) Color(rng *rand.Rand) color.RGBA {
	if !b.random {
		return b.fixed
	}
	return color.RGBA{
		R: uint8(220 + rng.IntN(36)),
		G: uint8(220 + rng.IntN(36)),
		B: uint8(220 + rng.IntN(36)),
		A: 255,
	}
}
