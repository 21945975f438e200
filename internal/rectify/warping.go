package rectify

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// edgeTolerance absorbs floating-point error when an output pixel maps onto the source's last row or column.
const edgeTolerance = 1e-6

// Background fills output pixels that map outside the source.
var Background = color.NRGBA{A: 0xff}

// Rectify warps src according to plan.
func Rectify(src image.Image, plan Plan) (*image.NRGBA, error) {
	return Warp(src, plan.Homography, plan.Width, plan.Height)
}

// Warp renders the dstW x dstH image seen through h, which maps source
// coordinates to destination coordinates. Each output pixel is sampled from
// the source at the inverse-mapped position with bilinear interpolation.
func Warp(src image.Image, h Homography, dstW, dstH int) (*image.NRGBA, error) {
	if src == nil {
		return nil, &utils.ImageProcessingError{Operation: "warp", Err: fmt.Errorf("input image is nil")}
	}
	if dstW <= 0 || dstH <= 0 {
		return nil, &DegenerateError{Width: dstW, Height: dstH, Reason: "non-positive output size"}
	}
	inv, err := h.Inverse()
	if err != nil {
		return nil, err
	}

	s := utils.ToNRGBA(src)
	out := image.NewNRGBA(image.Rect(0, 0, dstW, dstH))
	for y := range dstH {
		row := out.Pix[y*out.Stride : y*out.Stride+4*dstW]
		for x := range dstW {
			c := Background
			if p, ok := inv.Apply(utils.Point{X: float64(x), Y: float64(y)}); ok {
				c = bilinearSample(s, p.X, p.Y)
			}
			row[4*x], row[4*x+1], row[4*x+2], row[4*x+3] = c.R, c.G, c.B, c.A
		}
	}
	return out, nil
}

// bilinearSample interpolates src at (x, y). Positions outside the pixel grid yield Background.
func bilinearSample(src *image.NRGBA, x, y float64) color.NRGBA {
	b := src.Bounds()
	maxX, maxY := float64(b.Dx()-1), float64(b.Dy()-1)
	x, okX := snap(x, maxX)
	y, okY := snap(y, maxY)
	if !okX || !okY {
		return Background
	}

	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, b.Dx()-1), min(y0+1, b.Dy()-1)
	fx, fy := x-float64(x0), y-float64(y0)

	p00 := src.Pix[y0*src.Stride+4*x0:]
	p10 := src.Pix[y0*src.Stride+4*x1:]
	p01 := src.Pix[y1*src.Stride+4*x0:]
	p11 := src.Pix[y1*src.Stride+4*x1:]

	var out [4]uint8
	for i := range 4 {
		top := lerp(float64(p00[i]), float64(p10[i]), fx)
		bot := lerp(float64(p01[i]), float64(p11[i]), fx)
		out[i] = uint8(math.Round(lerp(top, bot, fy)))
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
}

// snap clamps v into [0, hi] when it lies within edgeTolerance of the range.
func snap(v, hi float64) (float64, bool) {
	switch {
	case v < -edgeTolerance || v > hi+edgeTolerance:
		return 0, false
	case v < 0:
		return 0, true
	case v > hi:
		return hi, true
	}
	return v, true
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }
