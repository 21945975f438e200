package utils

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSupportedImage(t *testing.T) {
	cases := []struct {
		path string
		ok   bool
	}{
		{"a.jpg", true},
		{"b.jpeg", true},
		{"c.PNG", true},
		{"d.bmp", true},
		{"e.tiff", true},
		{"f.gif", false},
		{"noext", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, IsSupportedImage(c.path), c.path)
	}
}

func filled(w, h int, col color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, col)
		}
	}
	return img
}

func TestSavePNGAndLoadImage(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "out.png")

	require.NoError(t, SavePNG(p, filled(10, 20, color.RGBA{R: 10, G: 20, B: 30, A: 255})))

	img, meta, err := LoadImage(p)
	require.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 10, meta.Width)
	assert.Equal(t, 20, meta.Height)
	assert.Positive(t, meta.SizeBytes)

	r, g, b, _ := img.At(3, 4).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(20), g>>8)
	assert.Equal(t, uint32(30), b>>8)
}

func TestLoadImageErrors(t *testing.T) {
	_, _, err := LoadImage("")
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "load", ipe.Operation)

	_, _, err = LoadImage("file.gif")
	require.Error(t, err)

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	require.ErrorAs(t, err, &ipe)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not a png"), 0o600))
	_, _, err = LoadImage(bad)
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)
}

func TestSavePNGNil(t *testing.T) {
	err := SavePNG(filepath.Join(t.TempDir(), "x.png"), nil)
	require.Error(t, err)
}

func TestCentroidAndDistance(t *testing.T) {
	pts := []Point{{0, 0}, {4, 0}, {4, 2}, {0, 2}}
	c := Centroid(pts)
	assert.InDelta(t, 2.0, c.X, 1e-12)
	assert.InDelta(t, 1.0, c.Y, 1e-12)
	assert.Equal(t, Point{}, Centroid(nil))
	assert.InDelta(t, 5.0, Point{0, 0}.Distance(Point{3, 4}), 1e-12)
}

func TestToNRGBA(t *testing.T) {
	src := filled(4, 3, color.RGBA{R: 200, A: 255})
	n := ToNRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 4, 3), n.Bounds())
	assert.Equal(t, uint8(200), n.NRGBAAt(1, 1).R)

	assert.Same(t, n, ToNRGBA(n))
}

func TestCloneRGBAOffsetsBounds(t *testing.T) {
	src := filled(6, 6, color.RGBA{G: 90, A: 255}).SubImage(image.Rect(2, 2, 5, 6))
	dst := CloneRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 3, 4), dst.Bounds())
	assert.Equal(t, uint8(90), dst.RGBAAt(0, 0).G)
}

func TestDrawPrimitives(t *testing.T) {
	dst := filled(40, 40, color.RGBA{A: 255})
	red := color.RGBA{R: 255, A: 255}

	DrawRect(dst, image.Rect(5, 5, 15, 15), red, 1)
	assert.Equal(t, red, dst.RGBAAt(5, 10))
	assert.Equal(t, color.RGBA{A: 255}, dst.RGBAAt(10, 10))

	DrawPolygon(dst, []Point{{20, 20}, {30, 20}, {30, 30}}, red, 1)
	assert.Equal(t, red, dst.RGBAAt(25, 20))
	assert.Equal(t, red, dst.RGBAAt(30, 25))

	DrawMarker(dst, Point{X: 2, Y: 35}, red, 1)
	assert.Equal(t, red, dst.RGBAAt(3, 36))

	DrawRect(dst, image.Rect(0, 0, 4, 4), red, 10)
	assert.Equal(t, red, dst.RGBAAt(2, 2), "oversized stroke fills the rectangle")

	// Diagonal strokes keep their width.
	DrawPolygon(dst, []Point{{10, 25}, {18, 33}}, red, 3)
	assert.Equal(t, red, dst.RGBAAt(14, 29))
	assert.Equal(t, red, dst.RGBAAt(15, 29))
	assert.Equal(t, red, dst.RGBAAt(13, 29))

	// Out of bounds drawing must not panic.
	DrawMarker(dst, Point{X: -10, Y: -10}, red, 3)
	DrawLabel(dst, Point{X: 1, Y: 13}, "TL", red)
}
