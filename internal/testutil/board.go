package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	gozxing "github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// DefaultLabels are the marker payloads in top-left, top-right, bottom-right, bottom-left order.
var DefaultLabels = [4]string{
	"canto_esquerdo_sup",
	"canto_direito_sup",
	"canto_direito_inf",
	"canto_esquerdo_inf",
}

var (
	boardGreen = color.NRGBA{R: 0x1f, G: 0x6b, B: 0x3a, A: 0xff}
	copper     = color.NRGBA{R: 0xc8, G: 0x8a, B: 0x3c, A: 0xff}
	silk       = color.NRGBA{R: 0xee, G: 0xee, B: 0xe4, A: 0xff}
	frameGray  = color.NRGBA{R: 0x5a, G: 0x5a, B: 0x5a, A: 0xff}
)

// BoardSpec describes a synthetic board.
type BoardSpec struct {
	Width    int
	Height   int
	ModulePx int       // pixels per QR module
	Quiet    int       // white margin around each marker, in pixels
	Labels   [4]string // TL, TR, BR, BL
}

// DefaultBoardSpec returns a board large enough for reliable decoding.
func DefaultBoardSpec() BoardSpec {
	return BoardSpec{Width: 520, Height: 360, ModulePx: 4, Quiet: 16, Labels: DefaultLabels}
}

// Board is a rendered board with its ground-truth geometry.
type Board struct {
	Image *image.NRGBA
	// Markers holds each marker's outline in marker winding, indexed TL, TR, BR, BL by role.
	Markers [4][4]utils.Point
	// Corners holds the interior-facing corner of each marker, TL, TR, BR, BL.
	Corners [4]utils.Point
}

// Marker rotations put marker-winding index 3, 2, 1, 0 of the TL, TR, BR, BL
// markers on the corner that faces the board centre. The left column and
// right column markers are printed turned in opposite directions.
var markerRotation = [4]int{90, -90, 90, -90}

// RenderMarker renders a QR symbol for text without a quiet zone.
func RenderMarker(text string, modulePx int) (*image.NRGBA, error) {
	hints := map[gozxing.EncodeHintType]interface{}{gozxing.EncodeHintType_MARGIN: 0}
	bm, err := qrcode.NewQRCodeWriter().Encode(text, gozxing.BarcodeFormat_QR_CODE, 1, 1, hints)
	if err != nil {
		return nil, fmt.Errorf("encode marker %q: %w", text, err)
	}
	n := bm.GetWidth()
	img := image.NewNRGBA(image.Rect(0, 0, n*modulePx, n*modulePx))
	for y := range n {
		for x := range n {
			c := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			if bm.Get(x, y) {
				c = color.NRGBA{A: 0xff}
			}
			r := image.Rect(x*modulePx, y*modulePx, (x+1)*modulePx, (y+1)*modulePx)
			draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
		}
	}
	return img, nil
}

// RenderBoard draws a board with a marker in each corner.
func RenderBoard(spec BoardSpec) (*Board, error) {
	img := image.NewNRGBA(image.Rect(0, 0, spec.Width, spec.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(boardGreen), image.Point{}, draw.Src)
	drawTraces(img)

	b := &Board{Image: img}
	for role, label := range spec.Labels {
		m, err := RenderMarker(label, spec.ModulePx)
		if err != nil {
			return nil, err
		}
		var rotated *image.NRGBA
		if markerRotation[role] > 0 {
			rotated = imaging.Rotate90(m)
		} else {
			rotated = imaging.Rotate270(m)
		}
		s := rotated.Bounds().Dx()
		q := spec.Quiet

		x0, y0 := q, q
		if role == 1 || role == 2 {
			x0 = spec.Width - q - s
		}
		if role == 2 || role == 3 {
			y0 = spec.Height - q - s
		}
		pad := image.Rect(x0-q, y0-q, x0+s+q, y0+s+q)
		draw.Draw(img, pad, image.NewUniform(color.White), image.Point{}, draw.Src)
		draw.Draw(img, image.Rect(x0, y0, x0+s, y0+s), rotated, image.Point{}, draw.Src)

		fx, fy, fs := float64(x0), float64(y0), float64(s)
		square := [4]utils.Point{{X: fx, Y: fy}, {X: fx + fs, Y: fy}, {X: fx + fs, Y: fy + fs}, {X: fx, Y: fy + fs}}
		shift := 3
		if markerRotation[role] < 0 {
			shift = 1
		}
		for k := range 4 {
			b.Markers[role][k] = square[(k+shift)%4]
		}
		b.Corners[role] = square[(role+2)%4]
	}
	return b, nil
}

// drawTraces paints a deterministic pattern of pads and tracks on the board body.
func drawTraces(img *image.NRGBA) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	for i := 1; i < 6; i++ {
		y := h * i / 6
		draw.Draw(img, image.Rect(w/5, y-2, w*4/5, y+2), image.NewUniform(copper), image.Point{}, draw.Src)
	}
	for i := 1; i < 5; i++ {
		x := w * i / 5
		draw.Draw(img, image.Rect(x-8, h/4, x+8, h*3/4), image.NewUniform(silk), image.Point{}, draw.Src)
	}
}

// AddDefect paints a filled rectangle, simulating a missing or wrong part.
func AddDefect(img draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// Placement positions a board in a camera frame: the board is scaled, rotated
// about its origin by AngleDeg, then translated by the offset.
type Placement struct {
	Scale    float64
	AngleDeg float64
	OffsetX  float64
	OffsetY  float64
}

// Scene is a simulated camera frame containing a board.
type Scene struct {
	Image   *image.NRGBA
	Markers [4][4]utils.Point
	Corners [4]utils.Point
}

// PlaceBoard renders b into a frameW x frameH frame.
func PlaceBoard(b *Board, frameW, frameH int, p Placement) *Scene {
	if p.Scale == 0 {
		p.Scale = 1
	}
	rad := p.AngleDeg * math.Pi / 180
	cos, sin := math.Cos(rad)*p.Scale, math.Sin(rad)*p.Scale
	s2d := f64.Aff3{cos, -sin, p.OffsetX, sin, cos, p.OffsetY}

	frame := image.NewNRGBA(image.Rect(0, 0, frameW, frameH))
	draw.Draw(frame, frame.Bounds(), image.NewUniform(frameGray), image.Point{}, draw.Src)
	xdraw.BiLinear.Transform(frame, s2d, b.Image, b.Image.Bounds(), xdraw.Over, nil)

	apply := func(q utils.Point) utils.Point {
		return utils.Point{X: s2d[0]*q.X + s2d[1]*q.Y + s2d[2], Y: s2d[3]*q.X + s2d[4]*q.Y + s2d[5]}
	}
	sc := &Scene{Image: frame}
	for role := range 4 {
		for k := range 4 {
			sc.Markers[role][k] = apply(b.Markers[role][k])
		}
		sc.Corners[role] = apply(b.Corners[role])
	}
	return sc
}

// Solid returns a w x h image filled with c.
func Solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// Gradient returns a w x h image whose colour varies smoothly in both axes.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(255 * x / max(w-1, 1)),
				G: uint8(255 * y / max(h-1, 1)),
				B: uint8(128 + 64*math.Sin(float64(x+y)/9)),
				A: 0xff,
			})
		}
	}
	return img
}
