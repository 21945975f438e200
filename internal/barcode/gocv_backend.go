//go:build withcv

package barcode

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

func init() {
	Register("gocv", func() (Backend, error) { return &gocvBackend{}, nil })
}

// gocvBackend uses OpenCV's QRCodeDetector, which reports symbol corners directly.
type gocvBackend struct{}

func (b *gocvBackend) Name() string { return "gocv" }

func (b *gocvBackend) Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var offset image.Point
	if !opts.ROI.Empty() {
		if rb := opts.ROI.Intersect(img.Bounds()); !rb.Empty() {
			offset = rb.Min
			img = subImage(img, rb)
		}
	}

	src, err := ImageToBGR(img)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	det := gocv.NewQRCodeDetector()
	defer det.Close()

	points := gocv.NewMat()
	defer points.Close()
	var decoded []string
	var codes []gocv.Mat
	ok := det.DetectAndDecodeMulti(src, &decoded, &points, &codes)
	for i := range codes {
		codes[i].Close()
	}
	if !ok || points.Empty() {
		return nil, nil
	}

	out := make([]Result, 0, len(decoded))
	for i, text := range decoded {
		if text == "" {
			continue
		}
		pts, ok := markerCorners(points, i)
		if !ok {
			continue
		}
		for j := range pts {
			pts[j].X += float64(offset.X)
			pts[j].Y += float64(offset.Y)
		}
		out = append(out, Result{Type: FormatQR, Value: text, Points: pts, BBox: rectFromPoints(pts)})
	}
	return out, nil
}

// markerCorners reads the four corners of marker i from the CV_32FC2 points
// Mat. OpenCV returns the corners as one flat run of 4N points, shaped 4N x 1,
// 1 x 4N or N x 4 depending on version, so the Mat is indexed in row-major
// order by corner number.
func markerCorners(points gocv.Mat, i int) ([]utils.Point, bool) {
	rows, cols := points.Rows(), points.Cols()
	if cols <= 0 || rows*cols < 4*(i+1) {
		return nil, false
	}
	pts := make([]utils.Point, 4)
	for j := range pts {
		k := 4*i + j
		v := points.GetVecfAt(k/cols, k%cols)
		pts[j] = utils.Point{X: float64(v[0]), Y: float64(v[1])}
	}
	return pts, true
}

// ImageToBGR converts img into a new 8-bit BGR Mat owned by the caller.
func ImageToBGR(img image.Image) (gocv.Mat, error) {
	rgba := utils.CloneRGBA(img)
	b := rgba.Bounds()
	mat, err := gocv.NewMatFromBytes(b.Dy(), b.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("gocv: convert image: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}
