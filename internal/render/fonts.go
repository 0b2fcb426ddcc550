package render

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Caia-Tech/caia-chartforge/pkg/textlayout"
)

// Style selects a face of the bundled Go font family.
type Style int

const (
	Regular Style = iota
	Italic
	Bold
)

// Faces holds the parsed Go fonts. The fonts are read-only and shared;
// every Face call builds a new font.Face, since faces keep glyph buffers
// that must not be used from two goroutines at once.
type Faces struct {
	fonts map[Style]*truetype.Font
}

// NewFaces parses the bundled TrueType fonts.
func NewFaces() (*Faces, error) {
	sources := map[Style][]byte{
		Regular: goregular.TTF,
		Italic:  goitalic.TTF,
		Bold:    gobold.TTF,
	}
	fonts := make(map[Style]*truetype.Font, len(sources))
	for style, ttf := range sources {
		f, err := truetype.Parse(ttf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse font style %d: %w", style, err)
		}
		fonts[style] = f
	}
	return &Faces{fonts: fonts}, nil
}

// Face returns a new measurer for style at size pixels. The result belongs
// to the caller and must stay on one goroutine.
func (f *Faces) Face(style Style, size float64) *textlayout.FaceMeasurer {
	face := truetype.NewFace(f.fonts[style], &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	return textlayout.NewFaceMeasurer(face)
}

var (
	defaultFaces     *Faces
	defaultFacesErr  error
	defaultFacesOnce sync.Once
)

// DefaultFaces returns a process-wide font cache.
func DefaultFaces() (*Faces, error) {
	defaultFacesOnce.Do(func() {
		defaultFaces, defaultFacesErr = NewFaces()
	})
	return defaultFaces, defaultFacesErr
}
