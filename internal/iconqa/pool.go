// Package iconqa composes synthetic icon-counting images (rows, scatters and
// grids of icons) together with their per-object bounding boxes.
package iconqa

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrNoIcons is returned when the icon pool holds no usable image.
var ErrNoIcons = errors.New("no icons found")

var iconExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

// Icon is a decoded pool image. Label is the file stem.
type Icon struct {
	Label  string
	Source string
	Image  *image.RGBA
}

// ListIcons returns every image file under root, sorted.
func ListIcons(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if iconExts[strings.ToLower(filepath.Ext(path))] {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan icon pool %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadIcon decodes path into RGBA regardless of its source format.
func LoadIcon(path string) (Icon, error) {
	f, err := os.Open(path)
	if err != nil {
		return Icon{}, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return Icon{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Icon{Label: stem, Source: path, Image: rgba}, nil
}

// LoadPool loads every decodable icon under root. Undecodable files are
// logged and skipped.
func LoadPool(root string) ([]Icon, error) {
	paths, err := ListIcons(root)
	if err != nil {
		return nil, err
	}
	icons := make([]Icon, 0, len(paths))
	for _, p := range paths {
		icon, err := LoadIcon(p)
		if err != nil {
			log.Warn().Err(err).Str("icon", p).Str("outcome", "warn").Msg("Skipping icon")
			continue
		}
		if icon.Image.Bounds().Empty() {
			continue
		}
		icons = append(icons, icon)
	}
	if len(icons) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoIcons, root)
	}
	log.Info().Str("pool", root).Int("icons", len(icons)).Msg("Loaded icon pool")
	return icons, nil
}
