// Package infographic lays out charts with headline, subtitle, notes and
// source on a fixed canvas and records the drawn text in reading order.
package infographic

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/rs/zerolog/log"
	xdraw "golang.org/x/image/draw"

	"github.com/Caia-Tech/caia-chartforge/internal/render"
	"github.com/Caia-Tech/caia-chartforge/pkg/textlayout"
)

// CanvasConfig holds canvas geometry and typography.
type CanvasConfig struct {
	Width            int     `json:"width" mapstructure:"width"`
	Height           int     `json:"height" mapstructure:"height"`
	Margin           int     `json:"margin" mapstructure:"margin"`
	Gutter           int     `json:"gutter" mapstructure:"gutter"`
	FooterHeight     int     `json:"footer_height" mapstructure:"footer_height"`
	ChartSidePad     int     `json:"chart_side_pad" mapstructure:"chart_side_pad"`
	TitleSize        float64 `json:"title_size" mapstructure:"title_size"`
	SubtitleSize     float64 `json:"subtitle_size" mapstructure:"subtitle_size"`
	SmallSize        float64 `json:"small_size" mapstructure:"small_size"`
	MaxSubtitleLines int     `json:"max_subtitle_lines" mapstructure:"max_subtitle_lines"`
}

// DefaultCanvasConfig returns the 1800×1200 infographic canvas.
func DefaultCanvasConfig() *CanvasConfig {
	return &CanvasConfig{
		Width:            1800,
		Height:           1200,
		Margin:           64,
		Gutter:           28,
		FooterHeight:     110,
		ChartSidePad:     24,
		TitleSize:        36,
		SubtitleSize:     18,
		SmallSize:        12,
		MaxSubtitleLines: 5,
	}
}

// Validate rejects canvases the layout cannot work with.
func (c *CanvasConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("invalid canvas %dx%d", c.Width, c.Height)
	}
	if c.Margin < 0 || c.Gutter < 0 || c.FooterHeight < 0 || c.ChartSidePad < 0 {
		return fmt.Errorf("canvas margin, gutter, footer height and side pad must not be negative")
	}
	if c.Width <= 2*c.Margin {
		return fmt.Errorf("canvas width %d leaves no room inside margin %d", c.Width, c.Margin)
	}
	if c.Height <= 2*c.Margin+c.FooterHeight {
		return fmt.Errorf("canvas height %d leaves no room inside margin %d and footer %d", c.Height, c.Margin, c.FooterHeight)
	}
	if c.TitleSize <= 0 || c.SubtitleSize <= 0 || c.SmallSize <= 0 {
		return fmt.Errorf("font sizes must be positive")
	}
	if c.MaxSubtitleLines < 1 {
		return fmt.Errorf("max subtitle lines must be at least 1, got %d", c.MaxSubtitleLines)
	}
	return nil
}

var (
	background    = color.RGBA{255, 255, 255, 255}
	textColor     = color.RGBA{20, 20, 20, 255}
	subtitleColor = color.RGBA{120, 120, 120, 255}
)

// Text is the copy placed around a chart.
type Text struct {
	Title    string
	Subtitle string
	Note     string
	Source   string
}

// Block is a run of wrapped lines whose first line's top edge is at Y.
type Block struct {
	Lines []string
	Y     int
}

// Layout is the computed placement of every element on the canvas.
type Layout struct {
	Title    Block
	Subtitle Block
	Notes    Block
	Source   Block
	Chart    image.Rectangle
	// Cramped is set when the text left no room for the chart and a fallback
	// chart height was used.
	Cramped bool
}

// OCR returns the drawn lines in draw order: title, subtitle, notes, source.
func (l Layout) OCR() []string {
	var out []string
	for _, b := range []Block{l.Title, l.Subtitle, l.Notes, l.Source} {
		out = append(out, b.Lines...)
	}
	return out
}

type measurers struct {
	title, subtitle, small textlayout.Measurer
}

// Composer places a chart and its text on a canvas.
type Composer struct {
	cfg   *CanvasConfig
	faces *render.Faces
	m     measurers
}

// NewComposer creates a composer. A nil config uses DefaultCanvasConfig.
func NewComposer(cfg *CanvasConfig, faces *render.Faces) *Composer {
	if cfg == nil {
		cfg = DefaultCanvasConfig()
	}
	return &Composer{
		cfg:   cfg,
		faces: faces,
		m: measurers{
			title:    faces.Face(render.Regular, cfg.TitleSize),
			subtitle: faces.Face(render.Italic, cfg.SubtitleSize),
			small:    faces.Face(render.Regular, cfg.SmallSize),
		},
	}
}

// Plan computes the layout without drawing anything.
func (c *Composer) Plan(text Text) Layout {
	cfg := c.cfg
	width := cfg.Width - 2*cfg.Margin
	y := cfg.Margin
	var l Layout

	if title := strings.TrimSpace(text.Title); title != "" {
		l.Title = Block{Lines: textlayout.Wrap(c.m.title, title, width), Y: y}
		y += len(l.Title.Lines)*c.m.title.LineHeight() + cfg.Gutter/2
	}

	var overflow []string
	if sub := strings.TrimSpace(text.Subtitle); sub != "" {
		lines := textlayout.Wrap(c.m.subtitle, sub, width)
		lines, overflow = textlayout.SplitOverflow(lines, cfg.MaxSubtitleLines)
		l.Subtitle = Block{Lines: lines, Y: y}
		y += len(lines)*c.m.subtitle.LineHeight() + cfg.Gutter/2
	}

	footerTop := cfg.Height - cfg.FooterHeight
	chartH := footerTop - y - cfg.Gutter
	if chartH <= 0 {
		l.Cramped = true
		chartH = max(1, cfg.Height/4)
	}
	l.Chart = image.Rect(cfg.ChartSidePad, y, cfg.Width-cfg.ChartSidePad, y+chartH)

	footY := footerTop + cfg.Gutter*3/10
	boxH := cfg.Height - footY

	note := strings.TrimSpace(text.Note)
	if len(overflow) > 0 {
		note = strings.TrimSpace(note + " " + strings.Join(overflow, " "))
	}
	source := ""
	if s := strings.TrimSpace(text.Source); s != "" {
		source = "Source: " + s
	}

	small := c.m.small
	srcH := textlayout.Height(small, source, width)
	gap := 0
	if note != "" && source != "" {
		gap = cfg.Gutter / 2
	}
	if maxNoteH := boxH - srcH - gap; note != "" && maxNoteH > 0 {
		if fitted := textlayout.Truncate(small, note, width, maxNoteH); fitted != "" {
			l.Notes = Block{Lines: textlayout.Wrap(small, fitted, width), Y: footY}
			footY += len(l.Notes.Lines)*small.LineHeight() + gap
		}
	}
	if source != "" {
		l.Source = Block{Lines: textlayout.Wrap(small, source, width), Y: footY}
	}
	return l
}

// ChartSize is the pixel size the chart occupies for the given text, so
// callers can render it without rescaling.
func (c *Composer) ChartSize(text Text) (int, int) {
	r := c.Plan(text).Chart
	return r.Dx(), r.Dy()
}

// Compose draws the chart and text and returns the canvas with its OCR lines.
func (c *Composer) Compose(chartImg image.Image, text Text) (*image.RGBA, []string) {
	cfg := c.cfg
	l := c.Plan(text)
	if l.Cramped {
		log.Warn().Str("title", text.Title).Msg("Not enough vertical space for chart; content may overlap")
	}

	canvas := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	xdraw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, xdraw.Src)

	x := cfg.Margin
	c.drawBlock(canvas, l.Title, render.Regular, cfg.TitleSize, x, textColor)
	c.drawBlock(canvas, l.Subtitle, render.Italic, cfg.SubtitleSize, x, subtitleColor)
	pasteChart(canvas, chartImg, l.Chart)
	c.drawBlock(canvas, l.Notes, render.Regular, cfg.SmallSize, x, textColor)
	c.drawBlock(canvas, l.Source, render.Regular, cfg.SmallSize, x, textColor)

	return canvas, l.OCR()
}

func (c *Composer) drawBlock(dst *image.RGBA, b Block, style render.Style, size float64, x int, col color.Color) {
	if len(b.Lines) == 0 {
		return
	}
	textlayout.DrawLines(dst, c.faces.Face(style, size), b.Lines, x, b.Y, col)
}

// pasteChart scales src into area keeping its aspect ratio, top-aligned and
// horizontally centered.
func pasteChart(dst *image.RGBA, src image.Image, area image.Rectangle) {
	sb := src.Bounds()
	if sb.Dx() == area.Dx() && sb.Dy() == area.Dy() {
		xdraw.Draw(dst, area, src, sb.Min, xdraw.Over)
		return
	}
	scale := min(float64(area.Dx())/float64(sb.Dx()), float64(area.Dy())/float64(sb.Dy()))
	w := max(1, int(float64(sb.Dx())*scale))
	h := max(1, int(float64(sb.Dy())*scale))
	x := area.Min.X + (area.Dx()-w)/2
	target := image.Rect(x, area.Min.Y, x+w, area.Min.Y+h)
	xdraw.CatmullRom.Scale(dst, target, src, sb, xdraw.Over, nil)
}
