package chart

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#F2C200")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0xF2, 0xC2, 0x00, 0xFF}, c)

	c, err = ParseHex("fff")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, c)

	_, err = ParseHex("#12345")
	assert.Error(t, err)
}

func TestStableColorMap(t *testing.T) {
	a := StableColorMap([]string{"beta", "Alpha", "gamma", "beta"}, PewPalette)
	b := StableColorMap([]string{"gamma", "beta", "Alpha"}, PewPalette)

	assert.Equal(t, a, b)
	assert.Equal(t, PewPalette[0], a["Alpha"])
	assert.Equal(t, PewPalette[1], a["beta"])
	assert.Equal(t, PewPalette[2], a["gamma"])

	colors := a.Colors([]Category{{Label: "gamma"}, {Label: "unknown"}}, PewPalette)
	assert.Equal(t, PewPalette[2], colors[0])
	assert.Equal(t, PewPalette[1], colors[1])
}

func TestContrastInk(t *testing.T) {
	assert.Equal(t, LightInk, ContrastInk(color.RGBA{0, 0, 0, 255}))
	assert.Equal(t, LightInk, ContrastInk(InfographicPalette[1]))
	assert.Equal(t, DarkInk, ContrastInk(InfographicPalette[0]))
	assert.Equal(t, DarkInk, ContrastInk(color.White))
}

func TestASCIIOnly(t *testing.T) {
	assert.Equal(t, "Cote d'Ivoire", ASCIIOnly("Côte d'Ivoire"))
	assert.Equal(t, "Sao Tome", ASCIIOnly("São  Tomé"))
	assert.Equal(t, "Tokyo", ASCIIOnly("Tokyo 東京"))
}

func TestTitleFromStem(t *testing.T) {
	assert.Equal(t, "Survey Results 2023", TitleFromStem("survey_results-2023"))
	assert.Equal(t, "Pie Chart", TitleFromStem("__"))
}
