package textlayout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
)

// monoMeasurer: every rune is 10px wide, lines are 20px tall.
type monoMeasurer struct{}

func (monoMeasurer) Advance(s string) int { return 10 * len([]rune(s)) }
func (monoMeasurer) LineHeight() int      { return 20 }

func TestWrap(t *testing.T) {
	m := monoMeasurer{}

	tests := []struct {
		name  string
		text  string
		width int
		want  []string
	}{
		{"fits", "one two", 100, []string{"one two"}},
		{"breaks", "one two three four", 90, []string{"one two", "three", "four"}},
		{"long word alone", "a extraordinarily b", 50, []string{"a", "extraordinarily", "b"}},
		{"collapses spaces", "  one \n two  ", 200, []string{"one two"}},
		{"empty", "", 100, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Wrap(m, tt.text, tt.width))
		})
	}
}

func TestHeight(t *testing.T) {
	m := monoMeasurer{}
	assert.Equal(t, 60, Height(m, "one two three four", 90))
	assert.Equal(t, 0, Height(m, "", 90))
}

func TestTruncate(t *testing.T) {
	m := monoMeasurer{}
	text := "alpha beta gamma delta epsilon zeta eta theta"

	got := Truncate(m, text, 110, 40)
	assert.True(t, strings.HasSuffix(got, "."))
	assert.LessOrEqual(t, Height(m, got, 110), 40)
	assert.Equal(t, "alpha beta gamma.", got)

	// unchanged when it fits
	assert.Equal(t, text, Truncate(m, text, 1000, 40))
}

func TestTruncate_Idempotent(t *testing.T) {
	m := monoMeasurer{}
	texts := []string{
		"The quick brown fox jumps over the lazy dog while the cat watches.",
		"Source: Our World in Data, based on national statistics offices, 2023",
		"word",
	}
	for _, text := range texts {
		for _, h := range []int{0, 20, 40, 60} {
			once := Truncate(m, text, 120, h)
			twice := Truncate(m, once, 120, h)
			assert.Equal(t, once, twice, "text=%q h=%d", text, h)
		}
	}
}

func TestTruncate_NothingFits(t *testing.T) {
	m := monoMeasurer{}
	assert.Equal(t, "", Truncate(m, "alpha beta", 100, 10))
	// an overlong first word still occupies a single line
	assert.Equal(t, "extraordinarily.", Truncate(m, "extraordinarily long", 100, 20))
}

func TestSplitOverflow(t *testing.T) {
	lines := []string{"1", "2", "3", "4", "5", "6", "7"}
	kept, overflow := SplitOverflow(lines, 5)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, kept)
	assert.Equal(t, []string{"6", "7"}, overflow)

	kept, overflow = SplitOverflow(lines[:3], 5)
	assert.Len(t, kept, 3)
	assert.Nil(t, overflow)
}

func TestFaceMeasurer(t *testing.T) {
	f := NewFaceMeasurer(basicfont.Face7x13)

	assert.Equal(t, 35, f.Advance("hello"))
	require.Greater(t, f.LineHeight(), 0)

	lines := Wrap(f, "hello world again", 80)
	assert.Equal(t, []string{"hello world", "again"}, lines)
}
