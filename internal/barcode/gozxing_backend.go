package barcode

import (
	"context"
	"fmt"
	"image"
	"math"

	gozxing "github.com/makiuchi-d/gozxing"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

func init() {
	Register("gozxing", func() (Backend, error) { return &gozxingBackend{}, nil })
}

// finderHalfModules is the distance in modules from a finder pattern centre to the symbol edge.
const finderHalfModules = 3.5

type gozxingBackend struct{}

func (b *gozxingBackend) Name() string { return "gozxing" }

func (b *gozxingBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// gozxing assumes an origin-anchored image; decode a copy of the ROI and shift back.
	var offset image.Point
	if !opts.ROI.Empty() {
		if rb := opts.ROI.Intersect(img.Bounds()); !rb.Empty() {
			offset = rb.Min
			img = utils.CloneRGBA(subImage(img, rb))
		}
	} else if img.Bounds().Min != (image.Point{}) {
		offset = img.Bounds().Min
		img = utils.CloneRGBA(img)
	}

	bitmap, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("gozxing: %w", err)
	}

	hints := make(map[gozxing.DecodeHintType]interface{})
	if opts.TryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	// Reader failures (not found, checksum, format) all mean "nothing legible here".
	var results []*gozxing.Result
	if opts.Multi {
		results, _ = multiqr.NewQRCodeMultiReader().DecodeMultiple(bitmap, hints)
		results = append(results, b.scanTiles(ctx, img, hints)...)
	} else if r, err := qrcode.NewQRCodeReader().Decode(bitmap, hints); err == nil {
		results = []*gozxing.Result{r}
	}

	out := make([]Result, 0, len(results))
	for _, r := range results {
		points := markerOutline(r.GetResultPoints())
		for i := range points {
			points[i].X += float64(offset.X)
			points[i].Y += float64(offset.Y)
		}
		res := Result{
			Type:   FormatQR,
			Value:  r.GetText(),
			Points: points,
			BBox:   rectFromPoints(points),
		}
		if !containsDuplicate(out, res) {
			out = append(out, res)
		}
	}
	return out, nil
}

// scanTiles decodes a 3x3 grid of overlapping half-size windows. The single-symbol
// QR detector picks the three most similar finder patterns in view, which fails
// when several symbols share the frame; a window holding one symbol avoids that.
// Result points are translated back to img coordinates.
func (b *gozxingBackend) scanTiles(ctx context.Context, img image.Image, hints map[gozxing.DecodeHintType]interface{}) []*gozxing.Result {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	var found []*gozxing.Result
	for j := range 3 {
		for i := range 3 {
			if ctx.Err() != nil {
				return found
			}
			tile := image.Rect(i*w/4, j*h/4, i*w/4+w/2, j*h/4+h/2)
			bitmap, err := gozxing.NewBinaryBitmapFromImage(utils.CloneRGBA(subImage(img, tile)))
			if err != nil {
				continue
			}
			r, err := qrcode.NewQRCodeReader().Decode(bitmap, hints)
			if err != nil {
				continue
			}
			found = append(found, shiftResult(r, tile.Min))
		}
	}
	return found
}

func shiftResult(r *gozxing.Result, by image.Point) *gozxing.Result {
	pts := r.GetResultPoints()
	shifted := make([]gozxing.ResultPoint, len(pts))
	for i, p := range pts {
		shifted[i] = offsetPoint{ResultPoint: p, dx: float64(by.X), dy: float64(by.Y)}
	}
	return gozxing.NewResult(r.GetText(), r.GetRawBytes(), shifted, r.GetBarcodeFormat())
}

// offsetPoint translates a result point while keeping the module size of finder patterns.
type offsetPoint struct {
	gozxing.ResultPoint
	dx, dy float64
}

func (p offsetPoint) GetX() float64 { return p.ResultPoint.GetX() + p.dx }
func (p offsetPoint) GetY() float64 { return p.ResultPoint.GetY() + p.dy }

func (p offsetPoint) GetEstimatedModuleSize() float64 {
	if ms, ok := p.ResultPoint.(moduleSizer); ok {
		return ms.GetEstimatedModuleSize()
	}
	return 0
}

// containsDuplicate reports whether out already holds a symbol with the same
// value whose box contains the centre of r.
func containsDuplicate(out []Result, r Result) bool {
	c := image.Pt((r.BBox.Min.X+r.BBox.Max.X)/2, (r.BBox.Min.Y+r.BBox.Max.Y)/2)
	for _, o := range out {
		if o.Value == r.Value && c.In(o.BBox) {
			return true
		}
	}
	return false
}

// moduleSizer is implemented by gozxing finder patterns.
type moduleSizer interface {
	GetEstimatedModuleSize() float64
}

// markerOutline turns the QR finder centres (bottom-left, top-left, top-right,
// optional alignment) into the symbol's outer quadrilateral in
// top-left, top-right, bottom-right, bottom-left order. Without a module size
// estimate the quadrilateral spans the finder centres.
func markerOutline(rps []gozxing.ResultPoint) []utils.Point {
	if len(rps) < 3 {
		pts := make([]utils.Point, len(rps))
		for i, p := range rps {
			pts[i] = utils.Point{X: p.GetX(), Y: p.GetY()}
		}
		return pts
	}
	bl := utils.Point{X: rps[0].GetX(), Y: rps[0].GetY()}
	tl := utils.Point{X: rps[1].GetX(), Y: rps[1].GetY()}
	tr := utils.Point{X: rps[2].GetX(), Y: rps[2].GetY()}

	var module float64
	for _, p := range rps[:3] {
		if ms, ok := p.(moduleSizer); ok {
			module += ms.GetEstimatedModuleSize() / 3
		}
	}
	return outlineFromFinders(bl, tl, tr, module)
}

func outlineFromFinders(bl, tl, tr utils.Point, module float64) []utils.Point {
	ux, uy := unit(tr.X-tl.X, tr.Y-tl.Y)
	vx, vy := unit(bl.X-tl.X, bl.Y-tl.Y)
	d := finderHalfModules * module

	br := utils.Point{X: tr.X + bl.X - tl.X, Y: tr.Y + bl.Y - tl.Y}
	return []utils.Point{
		{X: tl.X - d*ux - d*vx, Y: tl.Y - d*uy - d*vy},
		{X: tr.X + d*ux - d*vx, Y: tr.Y + d*uy - d*vy},
		{X: br.X + d*ux + d*vx, Y: br.Y + d*uy + d*vy},
		{X: bl.X - d*ux + d*vx, Y: bl.Y - d*uy + d*vy},
	}
}

func unit(x, y float64) (float64, float64) {
	n := math.Hypot(x, y)
	if n == 0 {
		return 0, 0
	}
	return x / n, y / n
}

// subImage returns the part of img inside r, copying when img has no SubImage method.
func subImage(img image.Image, r image.Rectangle) image.Image {
	type subImager interface{ SubImage(r image.Rectangle) image.Image }
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	dst := image.NewRGBA(r)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.Set(x, y, img.At(x, y))
		}
	}
	return dst
}
