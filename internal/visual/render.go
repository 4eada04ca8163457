package visual

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// LabelHeight is the strip above the panels that carries their labels.
const LabelHeight = 40

var (
	labelBlack = color.RGBA{0, 0, 0, 0xff}
	labelRed   = color.RGBA{0xff, 0, 0, 0xff}
)

// Composite renders baseline | current | amplified diff side by side on a
// white canvas of 3w x (h + LabelHeight), each panel labelled.
func (c *Comparison) Composite() *image.RGBA {
	b := c.Baseline.Bounds()
	w, h := b.Dx(), b.Dy()

	canvas := image.NewRGBA(image.Rect(0, 0, 3*w, h+LabelHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	panels := []struct {
		img   *image.RGBA
		label string
		color color.Color
	}{
		{c.Baseline, "BASELINE", labelBlack},
		{c.Current, "CURRENT", labelBlack},
		{c.Diff, fmt.Sprintf("DIFF (%.2f%%)", c.Ratio*100), labelRed},
	}
	for i, p := range panels {
		offset := i * w
		draw.Draw(canvas, image.Rect(offset, LabelHeight, offset+w, LabelHeight+h), p.img, image.Point{}, draw.Src)
		drawLabel(canvas, offset+w/2-40, 10, p.label, p.color)
	}
	return canvas
}

// drawLabel writes text with its top-left corner at (x, y).
func drawLabel(dst draw.Image, x, y int, text string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
