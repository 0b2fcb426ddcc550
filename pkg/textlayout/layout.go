// Package textlayout wraps, measures and truncates text against pixel limits.
package textlayout

import (
	"strings"
)

// Measurer reports rendered text sizes in pixels.
type Measurer interface {
	Advance(s string) int
	LineHeight() int
}

// Wrap greedily packs words into lines no wider than width. A single word
// wider than width still gets a line of its own.
func Wrap(m Measurer, text string, width int) []string {
	var lines []string
	cur := ""
	for _, w := range strings.Fields(text) {
		candidate := w
		if cur != "" {
			candidate = cur + " " + w
		}
		if m.Advance(candidate) <= width {
			cur = candidate
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
		}
		cur = w
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

// Height is the pixel height of text wrapped to width.
func Height(m Measurer, text string, width int) int {
	return len(Wrap(m, text, width)) * m.LineHeight()
}

// Truncate returns the longest word prefix of text that, terminated with
// ".", wraps within maxHeight. Text that already fits is returned unchanged,
// so truncating twice gives the same result. When not even "." fits the
// result is empty.
func Truncate(m Measurer, text string, width, maxHeight int) string {
	if Height(m, text, width) <= maxHeight {
		return text
	}
	words := strings.Fields(text)

	best := ""
	lo, hi := 0, len(words)
	for lo <= hi {
		mid := (lo + hi) / 2
		candidate := terminate(words[:mid])
		if Height(m, candidate, width) <= maxHeight {
			best = candidate
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

func terminate(words []string) string {
	s := strings.TrimRight(strings.Join(words, " "), " ,;:-")
	if strings.HasSuffix(s, ".") {
		return s
	}
	return s + "."
}

// SplitOverflow keeps the first max lines and returns the remainder.
func SplitOverflow(lines []string, max int) (kept, overflow []string) {
	if len(lines) <= max {
		return lines, nil
	}
	return lines[:max], lines[max:]
}
