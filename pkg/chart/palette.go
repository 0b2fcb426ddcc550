package chart

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
)

// PewPalette is a muted, colorblind-friendly palette.
var PewPalette = []color.RGBA{
	hex("#4C78A8"), hex("#F58518"), hex("#54A24B"), hex("#EECA3B"), hex("#B279A2"),
	hex("#FF9DA6"), hex("#9D755D"), hex("#BAB0AC"), hex("#72B7B2"), hex("#E45756"),
	hex("#F2CF5B"), hex("#60ACFC"), hex("#5C8EAA"), hex("#B3DE69"), hex("#C2C2F0"),
}

// InfographicPalette is the yellow/brown/black scheme followed by its light tints.
var InfographicPalette = []color.RGBA{
	hex("#F2C200"), hex("#7A4E2D"), hex("#000000"),
	hex("#F7D95A"), hex("#A36C49"), hex("#444444"),
}

// Ink colors for text on light and dark backgrounds.
var (
	DarkInk  = hex("#222222")
	LightInk = color.RGBA{255, 255, 255, 255}
)

func hex(s string) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseHex parses #RRGGBB or #RGB.
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	var r, g, b uint8
	switch len(s) {
	case 6:
		if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
			return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
	case 3:
		if _, err := fmt.Sscanf(s, "%1x%1x%1x", &r, &g, &b); err != nil {
			return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		r, g, b = r*17, g*17, b*17
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	return color.RGBA{r, g, b, 255}, nil
}

// ColorMap assigns colors to labels.
type ColorMap map[string]color.RGBA

// StableColorMap sorts the distinct labels case-insensitively and assigns
// palette colors in that order, so a label keeps its color across charts of
// one run.
func StableColorMap(labels []string, palette []color.RGBA) ColorMap {
	uniq := make(map[string]struct{}, len(labels))
	var sorted []string
	for _, l := range labels {
		if _, ok := uniq[l]; ok {
			continue
		}
		uniq[l] = struct{}{}
		sorted = append(sorted, l)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i]) < strings.ToLower(sorted[j])
	})
	cm := make(ColorMap, len(sorted))
	for i, l := range sorted {
		cm[l] = palette[i%len(palette)]
	}
	return cm
}

// Colors returns one color per category, falling back to positional palette
// entries for labels missing from the map.
func (cm ColorMap) Colors(cats []Category, palette []color.RGBA) []color.RGBA {
	out := make([]color.RGBA, len(cats))
	for i, c := range cats {
		if col, ok := cm[c.Label]; ok {
			out[i] = col
		} else {
			out[i] = palette[i%len(palette)]
		}
	}
	return out
}

// SequentialColors takes palette colors in order, cycling when needed.
func SequentialColors(n int, palette []color.RGBA) []color.RGBA {
	out := make([]color.RGBA, n)
	for i := range out {
		out[i] = palette[i%len(palette)]
	}
	return out
}

// Luminance is the Rec. 709 luma of c on a 0..255 scale.
func Luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return 0.2126*float64(r>>8) + 0.7152*float64(g>>8) + 0.0722*float64(b>>8)
}

// IsDark reports whether text on bg should be light.
func IsDark(bg color.Color) bool {
	return Luminance(bg) < 128
}

// ContrastInk picks the text color for a background.
func ContrastInk(bg color.Color) color.RGBA {
	if IsDark(bg) {
		return LightInk
	}
	return DarkInk
}
