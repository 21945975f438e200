package pipeline

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
	"github.com/MeKo-Tech/boardcmp/internal/testutil"
)

func TestRenderDetections(t *testing.T) {
	src := testutil.Solid(200, 150, color.White)
	dets := markerDetections()
	var obs fiducial.Observations
	obs = fiducial.Fold(obs, dets, fiducial.DefaultLabelMap())
	cs, err := fiducial.InteriorSelector{}.Select(obs)
	require.NoError(t, err)

	out := RenderDetections(src, dets, obs, &cs)
	require.NotNil(t, out)
	assert.Equal(t, image.Rect(0, 0, 200, 150), out.Bounds())

	// Polygon edge of the bottom-left marker.
	assert.Equal(t, polygonColor, out.RGBAAt(20, 140))
	// Selected corner of the bottom-right marker.
	assert.Equal(t, cornerColor, out.RGBAAt(170, 120))
	// Banner darkens the top-left strip.
	bg := out.RGBAAt(149, 23)
	assert.Less(t, bg.R, uint8(0x80))
	// Source untouched.
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, src.NRGBAAt(20, 140))
}

func TestRenderDetections_NoCorners(t *testing.T) {
	src := testutil.Solid(60, 40, color.White)
	out := RenderDetections(src, nil, fiducial.Observations{}, nil)
	require.NotNil(t, out)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, out.RGBAAt(59, 39))
	assert.Nil(t, RenderDetections(nil, nil, fiducial.Observations{}, nil))
}
