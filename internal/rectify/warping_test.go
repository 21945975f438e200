package rectify

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 2), G: uint8(y * 3), B: uint8((x * y) % 251), A: 255})
		}
	}
	return img
}

func TestWarp_IdentityIsIdempotent(t *testing.T) {
	src := gradient(101, 61)

	out, err := Warp(src, Identity, 101, 61)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, out.Pix)

	again, err := Warp(out, Identity, 101, 61)
	require.NoError(t, err)
	assert.Equal(t, out.Pix, again.Pix)
}

func TestRectify_ScenarioA(t *testing.T) {
	src := gradient(101, 61)
	corners := [4]utils.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 60}, {X: 0, Y: 60}}
	h, err := ComputeHomography(corners, DestinationCorners(101, 61))
	require.NoError(t, err)

	out, err := Rectify(src, Plan{Homography: h, Width: 101, Height: 61})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 101, 61), out.Bounds())
	assert.Equal(t, src.Pix, out.Pix)
}

func TestWarp_OutsideIsBlack(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	// Shift the source 5px right: the first 5 output columns have no source.
	shift := Homography{1, 0, 5, 0, 1, 0, 0, 0, 1}
	out, err := Warp(src, shift, 10, 10)
	require.NoError(t, err)

	assert.Equal(t, Background, out.NRGBAAt(0, 3))
	assert.Equal(t, Background, out.NRGBAAt(4, 9))
	assert.Equal(t, color.NRGBA{R: 200, G: 200, B: 200, A: 200}, out.NRGBAAt(5, 3))
}

func TestWarp_BilinearMidpoint(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 0, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 100, A: 255})

	// Scale x by 2: output pixel 1 samples source x=0.5.
	scale := Homography{2, 0, 0, 0, 1, 0, 0, 0, 1}
	out, err := Warp(src, scale, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), out.NRGBAAt(0, 0).R)
	assert.Equal(t, uint8(50), out.NRGBAAt(1, 0).R)
	assert.Equal(t, uint8(100), out.NRGBAAt(2, 0).R)
}

func TestWarp_NonOriginSource(t *testing.T) {
	full := gradient(20, 20)
	sub := full.SubImage(image.Rect(5, 5, 15, 15))

	out, err := Warp(sub, Identity, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, full.NRGBAAt(5, 5), out.NRGBAAt(0, 0))
}

func TestWarp_Errors(t *testing.T) {
	_, err := Warp(nil, Identity, 10, 10)
	var ipe *utils.ImageProcessingError
	assert.ErrorAs(t, err, &ipe)

	_, err = Warp(gradient(4, 4), Identity, 0, 10)
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = Warp(gradient(4, 4), Homography{1, 2, 3, 2, 4, 6, 0, 0, 1}, 4, 4)
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestSnap(t *testing.T) {
	v, ok := snap(-1e-9, 9)
	assert.True(t, ok)
	assert.Zero(t, v)
	v, ok = snap(9+1e-8, 9)
	assert.True(t, ok)
	assert.InDelta(t, 9, v, 0)
	_, ok = snap(9.1, 9)
	assert.False(t, ok)
}
