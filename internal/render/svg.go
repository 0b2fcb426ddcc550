package render

import (
	"bufio"
	"fmt"
	"html"
	"image/color"
	"io"
	"math"
	"strconv"

	"github.com/Caia-Tech/caia-chartforge/pkg/chart"
)

// WritePieSVG writes a pie (or donut) chart with a legend as standalone SVG.
func WritePieSVG(w io.Writer, k chart.PieKind, cats []chart.Category, opts Options) error {
	if len(cats) == 0 {
		return fmt.Errorf("svg pie: no categories")
	}
	if err := opts.fill(len(cats)); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	W, H := float64(opts.Width), float64(opts.Height)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n",
		opts.Width, opts.Height, opts.Width, opts.Height)
	fmt.Fprintf(bw, `<rect width="100%%" height="100%%" fill="%s"/>`+"\n", svgColor(backgroundOr(opts.Background, color.White)))

	top := 16.0
	if opts.Title != "" {
		fmt.Fprintf(bw, `<text x="%s" y="%s" font-family="sans-serif" font-size="26" font-weight="600" text-anchor="middle" fill="#222222">%s</text>`+"\n",
			num(W/2), num(top+26), html.EscapeString(opts.Title))
		top += 40
		if opts.Subtitle != "" {
			fmt.Fprintf(bw, `<text x="%s" y="%s" font-family="sans-serif" font-size="15" text-anchor="middle" fill="#555555">%s</text>`+"\n",
				num(W/2), num(top+12), html.EscapeString(opts.Subtitle))
			top += 24
		}
	}

	legendW := W * 0.3
	plotW := W - legendW
	r := math.Min(plotW, H-top-16)/2 - 8
	cx, cy := plotW/2, top+(H-top)/2

	inner := 0.0
	if k.Donut {
		width := k.RingWidth
		if width <= 0 || width >= 1 {
			width = 0.45
		}
		inner = r * (1 - width)
	}

	total := chart.Total(cats)
	angle := 90.0
	for i, c := range cats {
		sweep := c.Value / total * 360
		fmt.Fprintf(bw, `<path d="%s" fill="%s" stroke="#ffffff" stroke-width="1"/>`+"\n",
			wedgePath(cx, cy, inner, r, angle, angle-sweep), svgColor(opts.Colors[i]))
		angle -= sweep
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
		fmt.Fprintf(bw, `<text x="%s" y="%s" font-family="sans-serif" font-size="15" font-weight="600" text-anchor="middle" dominant-baseline="middle" fill="%s">%s%%</text>`+"\n",
			num(float64(x)), num(float64(y)), svgColor(chart.ContrastInk(opts.Colors[i])),
			strconv.FormatFloat(share*100, 'f', opts.PercentDecimals, 64))
	}

	const pitch = 24.0
	y := cy - pitch*float64(len(cats))/2
	for i, c := range cats {
		fmt.Fprintf(bw, `<rect x="%s" y="%s" width="14" height="14" fill="%s"/>`+"\n", num(plotW), num(y), svgColor(opts.Colors[i]))
		fmt.Fprintf(bw, `<text x="%s" y="%s" font-family="sans-serif" font-size="15" fill="#222222">%s</text>`+"\n",
			num(plotW+22), num(y+12), html.EscapeString(c.Label))
		y += pitch
	}

	fmt.Fprintln(bw, "</svg>")
	return bw.Flush()
}

func wedgePath(cx, cy, inner, outer, start, end float64) string {
	large := 0
	if math.Abs(end-start) > 180 {
		large = 1
	}
	// a full circle cannot be expressed as one arc
	if math.Abs(end-start) >= 359.999 {
		end = start - 359.999
	}
	ox1, oy1 := polar(cx, cy, outer, start)
	ox2, oy2 := polar(cx, cy, outer, end)
	if inner <= 0 {
		return fmt.Sprintf("M %s %s L %s %s A %s %s 0 %d 1 %s %s Z",
			num(cx), num(cy), num32(ox1), num32(oy1), num(outer), num(outer), large, num32(ox2), num32(oy2))
	}
	ix1, iy1 := polar(cx, cy, inner, end)
	ix2, iy2 := polar(cx, cy, inner, start)
	return fmt.Sprintf("M %s %s A %s %s 0 %d 1 %s %s L %s %s A %s %s 0 %d 0 %s %s Z",
		num32(ox1), num32(oy1), num(outer), num(outer), large, num32(ox2), num32(oy2),
		num32(ix1), num32(iy1), num(inner), num(inner), large, num32(ix2), num32(iy2))
}

func num(v float64) string   { return strconv.FormatFloat(v, 'f', 2, 64) }
func num32(v float32) string { return strconv.FormatFloat(float64(v), 'f', 2, 32) }

func svgColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}

func backgroundOr(c, fallback color.Color) color.Color {
	if c == nil {
		return fallback
	}
	return c
}
