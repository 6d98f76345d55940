package app

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	backgroundColor = color.White
	foregroundColor = color.Black
	gridColor       = color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
)

// seriesColor returns one of n evenly spaced hues, blended in the HCL space so that
// neighbouring series stay distinguishable
func seriesColor(i, n int) color.Color {
	if n <= 1 {
		return colorful.Hsv(210, 0.85, 0.75)
	}

	from := colorful.Hsv(210, 0.85, 0.75)
	to := colorful.Hsv(10, 0.85, 0.85)
	return from.BlendHcl(to, float64(i)/float64(n-1)).Clamped()
}
