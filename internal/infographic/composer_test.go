package infographic

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Caia-Tech/caia-chartforge/internal/render"
)

type monoMeasurer struct{}

func (monoMeasurer) Advance(s string) int { return 10 * len([]rune(s)) }
func (monoMeasurer) LineHeight() int      { return 20 }

// narrowComposer wraps text at 10 characters per line.
func narrowComposer(height int) *Composer {
	cfg := DefaultCanvasConfig()
	cfg.Width = 228
	cfg.Height = height
	m := monoMeasurer{}
	return &Composer{cfg: cfg, m: measurers{title: m, subtitle: m, small: m}}
}

func TestPlan_OCROrderAndSubtitleOverflow(t *testing.T) {
	c := narrowComposer(1200)
	l := c.Plan(Text{
		Title:    "Energy mix",
		Subtitle: "aaaa bbbb cccc dddd eeee ffff gggg hhhh iiii jjjj kkkk llll mmmm nnnn",
		Source:   "AutoGen",
	})

	assert.Equal(t, []string{"Energy mix"}, l.Title.Lines)
	assert.Len(t, l.Subtitle.Lines, 5)
	assert.Equal(t, []string{"kkkk llll", "mmmm nnnn"}, l.Notes.Lines)
	assert.Equal(t, []string{"Source:", "AutoGen"}, l.Source.Lines)

	assert.Equal(t, []string{
		"Energy mix",
		"aaaa bbbb", "cccc dddd", "eeee ffff", "gggg hhhh", "iiii jjjj",
		"kkkk llll", "mmmm nnnn",
		"Source:", "AutoGen",
	}, l.OCR())

	// blocks are stacked top to bottom without overlap
	assert.Less(t, l.Title.Y, l.Subtitle.Y)
	assert.LessOrEqual(t, l.Subtitle.Y+5*20, l.Chart.Min.Y)
	assert.LessOrEqual(t, l.Chart.Max.Y, l.Notes.Y)
	assert.Less(t, l.Notes.Y, l.Source.Y)
	assert.LessOrEqual(t, l.Source.Y+2*20, 1200)
}

func TestPlan_NotesTruncatedToFooter(t *testing.T) {
	c := narrowComposer(1200)
	l := c.Plan(Text{
		Title:  "T",
		Note:   "one two three four five six seven eight nine ten eleven twelve",
		Source: "AutoGen",
	})

	require.NotEmpty(t, l.Notes.Lines)
	assert.LessOrEqual(t, len(l.Notes.Lines), 2)
	last := l.Notes.Lines[len(l.Notes.Lines)-1]
	assert.True(t, strings.HasSuffix(last, "."))
	assert.Equal(t, []string{"Source:", "AutoGen"}, l.Source.Lines)
	assert.LessOrEqual(t, l.Source.Y+len(l.Source.Lines)*20, 1200)
}

func TestPlan_SourceOnly(t *testing.T) {
	c := narrowComposer(1200)
	l := c.Plan(Text{Source: "OWID"})

	assert.Empty(t, l.Title.Lines)
	assert.Empty(t, l.Notes.Lines)
	assert.Equal(t, []string{"Source:", "OWID"}, l.OCR())
	assert.Equal(t, 64, l.Chart.Min.Y)
}

func TestPlan_Cramped(t *testing.T) {
	c := narrowComposer(300)
	l := c.Plan(Text{Title: strings.Repeat("word ", 20)})

	assert.True(t, l.Cramped)
	assert.Equal(t, 75, l.Chart.Dy())
}

func TestCompose(t *testing.T) {
	faces, err := render.DefaultFaces()
	require.NoError(t, err)

	cfg := DefaultCanvasConfig()
	cfg.Width, cfg.Height = 600, 500
	c := NewComposer(cfg, faces)

	red := color.RGBA{255, 0, 0, 255}
	chartImg := image.NewRGBA(image.Rect(0, 0, 100, 100))
	draw.Draw(chartImg, chartImg.Bounds(), image.NewUniform(red), image.Point{}, draw.Src)

	text := Text{Title: "Share of energy", Subtitle: "By source, 2022", Source: "AutoGen"}
	canvas, ocr := c.Compose(chartImg, text)

	assert.Equal(t, image.Rect(0, 0, 600, 500), canvas.Bounds())
	assert.Equal(t, c.Plan(text).OCR(), ocr)
	assert.Equal(t, "Share of energy", ocr[0])
	assert.Equal(t, "Source: AutoGen", ocr[len(ocr)-1])

	area := c.Plan(text).Chart
	assert.Equal(t, red, canvas.RGBAAt(area.Min.X+area.Dx()/2, area.Min.Y+area.Dy()/2))
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, canvas.RGBAAt(2, 2))
}

func TestChartSize(t *testing.T) {
	c := narrowComposer(1200)
	w, h := c.ChartSize(Text{Title: "x"})
	assert.Equal(t, 228-48, w)
	assert.Greater(t, h, 0)
}
