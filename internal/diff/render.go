package diff

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/floats"
)

// viridis anchor colours at 0, 0.25, 0.5, 0.75 and 1.
var viridis = [5]color.NRGBA{
	{R: 0x44, G: 0x01, B: 0x54, A: 0xff},
	{R: 0x3b, G: 0x52, B: 0x8b, A: 0xff},
	{R: 0x21, G: 0x91, B: 0x8c, A: 0xff},
	{R: 0x5e, G: 0xc9, B: 0x62, A: 0xff},
	{R: 0xfd, G: 0xe7, B: 0x25, A: 0xff},
}

// Colormap maps t in [0, 1] onto the viridis ramp.
func Colormap(t float64) color.NRGBA {
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(viridis)-1)
	i := min(int(pos), len(viridis)-2)
	f := pos - float64(i)
	a, b := viridis[i], viridis[i+1]
	mix := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f)) }
	return color.NRGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 0xff}
}

// Heatmap renders f with values in [0, vmax] spread over the colormap.
// A non-positive vmax uses the field maximum.
func Heatmap(f *Field, vmax float64) *image.NRGBA {
	if vmax <= 0 && len(f.Data) > 0 {
		vmax = floats.Max(f.Data)
	}
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, v := range f.Data {
		t := 0.0
		if vmax > 0 {
			t = v / vmax
		}
		c := Colormap(t)
		img.Pix[4*i], img.Pix[4*i+1], img.Pix[4*i+2], img.Pix[4*i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// MaskImage renders flagged pixels white on black.
func MaskImage(m *Mask) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, b := range m.Bits {
		if b {
			img.Pix[i] = 0xff
		}
	}
	return img
}

// ChannelImage renders a projected channel as 8-bit grey, clamping to [0, 255].
func ChannelImage(f *Field) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for i, v := range f.Data {
		img.Pix[i] = uint8(math.Max(0, math.Min(255, v)))
	}
	return img
}

// SideBySide places the images left to right on a black canvas tall enough for both.
func SideBySide(imgs ...image.Image) *image.NRGBA {
	var w, h int
	for _, im := range imgs {
		w += im.Bounds().Dx()
		h = max(h, im.Bounds().Dy())
	}
	canvas := imaging.New(w, h, color.Black)
	x := 0
	for _, im := range imgs {
		canvas = imaging.Paste(canvas, im, image.Pt(x, 0))
		x += im.Bounds().Dx()
	}
	return canvas
}

// Overlay tints flagged pixels of base red, for a quick visual of where anomalies are.
func Overlay(base image.Image, m *Mask) *image.NRGBA {
	out := imaging.Clone(base)
	b := out.Bounds()
	tint := color.NRGBA{R: 0xff, A: 0xff}
	for y := range min(b.Dy(), m.Height) {
		for x := range min(b.Dx(), m.Width) {
			if !m.At(x, y) {
				continue
			}
			c := out.NRGBAAt(x, y)
			out.SetNRGBA(x, y, color.NRGBA{
				R: uint8((uint16(c.R) + uint16(tint.R)) / 2),
				G: c.G / 2,
				B: c.B / 2,
				A: 0xff,
			})
		}
	}
	return out
}
