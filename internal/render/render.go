// Package render rasterizes pie, donut and bar charts.
package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/Caia-Tech/caia-chartforge/pkg/chart"
	"github.com/Caia-Tech/caia-chartforge/pkg/textlayout"
)

// Options control chart rendering. Zero sizes fall back to 1200×850.
type Options struct {
	Width      int
	Height     int
	Colors     []color.RGBA // one per category; palette order when nil
	Palette    []color.RGBA
	Background color.Color // nil keeps the chart transparent
	Title      string
	Subtitle   string
	// PercentDecimals is the precision of on-wedge labels.
	PercentDecimals int
	// PercentRadius places on-wedge labels as a fraction of the radius.
	PercentRadius float64
	WedgeEdges    bool
	Faces         *Faces
}

// Render draws cats as the given chart kind.
func Render(kind chart.Kind, cats []chart.Category, opts Options) (*image.RGBA, error) {
	if len(cats) == 0 {
		return nil, fmt.Errorf("render %s: no categories", kind.Name())
	}
	if err := opts.fill(len(cats)); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	if opts.Background != nil {
		fillRect(img, img.Bounds(), opts.Background)
	}
	area := drawHeading(img, opts)

	switch k := kind.(type) {
	case chart.PieKind:
		drawPie(img, area, k, cats, opts)
	case chart.BarKind:
		if k.Orientation == chart.Vertical {
			drawVBars(img, area, cats, opts)
		} else {
			drawHBars(img, area, cats, opts)
		}
	default:
		return nil, fmt.Errorf("unsupported chart kind %T", kind)
	}
	return img, nil
}

func (o *Options) fill(n int) error {
	if o.Width <= 0 {
		o.Width = 1200
	}
	if o.Height <= 0 {
		o.Height = 850
	}
	if len(o.Palette) == 0 {
		o.Palette = chart.InfographicPalette
	}
	if o.Colors == nil {
		o.Colors = chart.SequentialColors(n, o.Palette)
	}
	if len(o.Colors) < n {
		return fmt.Errorf("need %d colors, got %d", n, len(o.Colors))
	}
	if o.PercentRadius <= 0 {
		o.PercentRadius = 0.6
	}
	if o.Faces == nil {
		faces, err := DefaultFaces()
		if err != nil {
			return err
		}
		o.Faces = faces
	}
	return nil
}

// ink is the text color for the chart background.
func (o *Options) ink() color.RGBA {
	if o.Background == nil {
		return chart.DarkInk
	}
	return chart.ContrastInk(o.Background)
}

// drawHeading draws the optional title and subtitle and returns the area
// left for the plot.
func drawHeading(img *image.RGBA, opts Options) image.Rectangle {
	area := img.Bounds().Inset(16)
	if opts.Title == "" {
		return area
	}
	title := opts.Faces.Face(Bold, 26)
	y := area.Min.Y
	for _, line := range textlayout.Wrap(title, opts.Title, area.Dx()) {
		textlayout.DrawCentered(img, title, line, area.Min.X+area.Dx()/2, y+title.Ascent(), opts.ink())
		y += title.LineHeight()
	}
	if opts.Subtitle != "" {
		sub := opts.Faces.Face(Regular, 15)
		for _, line := range textlayout.Wrap(sub, opts.Subtitle, area.Dx()) {
			textlayout.DrawCentered(img, sub, line, area.Min.X+area.Dx()/2, y+sub.Ascent(), color.RGBA{0x55, 0x55, 0x55, 0xff})
			y += sub.LineHeight()
		}
	}
	area.Min.Y = y + 12
	return area
}

func drawPie(img *image.RGBA, area image.Rectangle, k chart.PieKind, cats []chart.Category, opts Options) {
	legendFace := opts.Faces.Face(Regular, 16)
	legendW := legendWidth(legendFace, cats, area.Dx()*2/5)

	plotW := area.Dx() - legendW
	r := math.Min(float64(plotW), float64(area.Dy()))/2 - 8
	if r < 4 {
		r = 4
	}
	cx := float64(area.Min.X) + float64(plotW)/2
	cy := float64(area.Min.Y) + float64(area.Dy())/2

	inner := 0.0
	if k.Donut {
		width := k.RingWidth
		if width <= 0 || width >= 1 {
			width = 0.45
		}
		inner = r * (1 - width)
	}

	total := chart.Total(cats)
	pctFace := opts.Faces.Face(Bold, 15)
	angle := 90.0
	for i, c := range cats {
		sweep := c.Value / total * 360
		fillWedge(img, cx, cy, inner, r, angle, angle-sweep, opts.Colors[i])
		angle -= sweep
	}

	if opts.WedgeEdges && len(cats) > 1 {
		angle = 90.0
		for _, c := range cats {
			x0, y0 := polar(cx, cy, inner, angle)
			x1, y1 := polar(cx, cy, r, angle)
			strokeLine(img, float64(x0), float64(y0), float64(x1), float64(y1), 2, color.White)
			angle -= c.Value / total * 360
		}
	}

	labelR := r * opts.PercentRadius
	if k.Donut {
		labelR = (inner + r) / 2
	}
	angle = 90.0
	for i, c := range cats {
		share := c.Value / total
		mid := angle - share*180
		angle -= share * 360
		if share < k.AutoPctMin {
			continue
		}
		x, y := polar(cx, cy, labelR, mid)
		text := strconv.FormatFloat(share*100, 'f', opts.PercentDecimals, 64) + "%"
		baseline := int(y) + pctFace.Ascent()/2
		textlayout.DrawCentered(img, pctFace, text, int(x), baseline, chart.ContrastInk(opts.Colors[i]))
	}

	drawLegend(img, legendFace, cats, opts.Colors, area.Min.X+plotW, int(cy), legendW, opts.ink())
}

func legendWidth(face *textlayout.FaceMeasurer, cats []chart.Category, limit int) int {
	widest := 0
	for _, c := range cats {
		widest = max(widest, face.Advance(c.Label))
	}
	swatch := face.LineHeight()
	return min(widest+swatch*2, limit)
}

// drawLegend draws swatch+label rows vertically centered on cy. Labels that
// do not fit the legend width are cut at a word boundary.
func drawLegend(img *image.RGBA, face *textlayout.FaceMeasurer, cats []chart.Category, colors []color.RGBA, x, cy, width int, ink color.Color) {
	lh := face.LineHeight()
	pitch := lh + lh/3
	swatch := lh * 3 / 4
	textX := x + swatch + lh/2
	textW := width - (textX - x)

	y := cy - pitch*len(cats)/2
	for i, c := range cats {
		fillRect(img, image.Rect(x, y+(lh-swatch)/2, x+swatch, y+(lh-swatch)/2+swatch), colors[i])
		label := c.Label
		if face.Advance(label) > textW {
			label = textlayout.Truncate(face, label, textW, lh)
		}
		textlayout.DrawAt(img, face, label, textX, y+face.Ascent(), ink)
		y += pitch
	}
}

// FormatValue prints integers without decimals and anything else with one.
func FormatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func maxValue(cats []chart.Category) float64 {
	m := 0.0
	for _, c := range cats {
		m = math.Max(m, c.Value)
	}
	return m
}

func drawHBars(img *image.RGBA, area image.Rectangle, cats []chart.Category, opts Options) {
	face := opts.Faces.Face(Regular, 15)
	ink := opts.ink()

	labelW := 0
	for _, c := range cats {
		labelW = max(labelW, face.Advance(c.Label))
	}
	labelW = min(labelW+10, area.Dx()*35/100)
	valueW := face.Advance(" "+FormatValue(maxValue(cats))) + 8

	x0 := area.Min.X + labelW
	barAreaW := area.Dx() - labelW - valueW
	slot := area.Dy() / len(cats)
	barH := max(slot*7/10, 2)
	peak := maxValue(cats)

	// cats are ascending: draw the last one on top
	for i, c := range cats {
		row := len(cats) - 1 - i
		top := area.Min.Y + row*slot + (slot-barH)/2
		w := int(math.Round(c.Value / peak * float64(barAreaW)))
		fillRect(img, image.Rect(x0, top, x0+w, top+barH), opts.Colors[0])

		mid := top + barH/2 + face.Ascent()/2
		label := c.Label
		if face.Advance(label) > labelW-10 {
			label = textlayout.Truncate(face, label, labelW-10, face.LineHeight())
		}
		textlayout.DrawAt(img, face, label, x0-10-face.Advance(label), mid, ink)
		textlayout.DrawAt(img, face, " "+FormatValue(c.Value), x0+w+2, mid, ink)
	}
	strokeLine(img, float64(x0), float64(area.Min.Y), float64(x0), float64(area.Max.Y), 1.5, ink)
}

func drawVBars(img *image.RGBA, area image.Rectangle, cats []chart.Category, opts Options) {
	face := opts.Faces.Face(Regular, 14)
	ink := opts.ink()
	lh := face.LineHeight()

	baseY := area.Max.Y - lh*2 - 6
	top := area.Min.Y + lh + 4
	slot := area.Dx() / len(cats)
	barW := max(slot*6/10, 2)
	peak := maxValue(cats)

	for i, c := range cats {
		left := area.Min.X + i*slot + (slot-barW)/2
		h := int(math.Round(c.Value / peak * float64(baseY-top)))
		fillRect(img, image.Rect(left, baseY-h, left+barW, baseY), opts.Colors[i%len(opts.Colors)])

		cx := left + barW/2
		textlayout.DrawCentered(img, face, FormatValue(c.Value), cx, baseY-h-4, ink)

		lines := textlayout.Wrap(face, c.Label, slot-4)
		if len(lines) > 2 {
			lines = textlayout.Wrap(face, textlayout.Truncate(face, c.Label, slot-4, lh*2), slot-4)
		}
		y := baseY + 6
		for _, line := range lines {
			textlayout.DrawCentered(img, face, line, cx, y+face.Ascent(), ink)
			y += lh
		}
	}
	strokeLine(img, float64(area.Min.X), float64(baseY), float64(area.Max.X), float64(baseY), 1.5, ink)
}
