package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Point represents a 2D coordinate in float space.
type Point struct {
	X float64
	Y float64
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Centroid returns the arithmetic mean of pts. The zero Point is returned for an empty slice.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	return Point{X: cx / n, Y: cy / n}
}

// ToNRGBA returns img as an *image.NRGBA anchored at the origin.
// Images that already satisfy this are returned without copying.
func ToNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

// CloneRGBA copies img into a new RGBA canvas anchored at the origin so it can be drawn on.
func CloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// DrawRect draws an axis-aligned rectangle outline into dst. The stroke
// lies inside rect.
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.Color, thickness int) {
	thickness = max(thickness, 1)
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	t := min(thickness, rect.Dx(), rect.Dy())
	fill(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+t), col)
	fill(dst, image.Rect(rect.Min.X, rect.Max.Y-t, rect.Max.X, rect.Max.Y), col)
	fill(dst, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+t, rect.Max.Y), col)
	fill(dst, image.Rect(rect.Max.X-t, rect.Min.Y, rect.Max.X, rect.Max.Y), col)
}

// DrawPolygon draws connected line segments and closes the polygon.
func DrawPolygon(dst *image.RGBA, pts []Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	ip := make([]image.Point, len(pts))
	for i, p := range pts {
		ip[i] = image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
	}
	for i := range ip {
		drawLine(dst, ip[i], ip[(i+1)%len(ip)], col, thickness)
	}
}

// DrawMarker draws a filled square of the given radius centred on p.
func DrawMarker(dst *image.RGBA, p Point, col color.Color, radius int) {
	drawThickPoint(dst, int(math.Round(p.X)), int(math.Round(p.Y)), col, 2*radius+1)
}

// DrawLabel writes text with its baseline origin at p using the 7x13 bitmap face.
func DrawLabel(dst *image.RGBA, p Point, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(math.Round(p.X)), int(math.Round(p.Y))),
	}
	d.DrawString(text)
}

// drawLine steps along the major axis and stamps a square brush at every
// sample, so diagonal strokes keep the requested thickness.
func drawLine(dst *image.RGBA, a, b image.Point, col color.Color, thickness int) {
	d := b.Sub(a)
	steps := max(absInt(d.X), absInt(d.Y))
	if steps == 0 {
		drawThickPoint(dst, a.X, a.Y, col, thickness)
		return
	}
	fx, fy := float64(d.X)/float64(steps), float64(d.Y)/float64(steps)
	for i := 0; i <= steps; i++ {
		x := a.X + int(math.Round(fx*float64(i)))
		y := a.Y + int(math.Round(fy*float64(i)))
		drawThickPoint(dst, x, y, col, thickness)
	}
}

func drawThickPoint(dst *image.RGBA, x, y int, col color.Color, thickness int) {
	r := (max(thickness, 1) - 1) / 2
	fill(dst, image.Rect(x-r, y-r, x+r+1, y+r+1), col)
}

// fill paints rect, clipped to dst, with col.
func fill(dst *image.RGBA, rect image.Rectangle, col color.Color) {
	draw.Draw(dst, rect.Intersect(dst.Bounds()), image.NewUniform(col), image.Point{}, draw.Src)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
