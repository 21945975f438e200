package diff

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

var gray = color.NRGBA{R: 128, G: 128, B: 128, A: 255}

func TestProject(t *testing.T) {
	white := solid(1, 1, color.White)
	assert.InDelta(t, 235, Project(white, ChannelY).Data[0], 1e-9)
	assert.InDelta(t, 128, Project(white, ChannelCb).Data[0], 1e-9)
	assert.InDelta(t, 128, Project(white, ChannelCr).Data[0], 1e-9)

	red := solid(1, 1, color.NRGBA{R: 255, A: 255})
	assert.InDelta(t, 81.481, Project(red, ChannelY).Data[0], 1e-9)
	assert.InDelta(t, 90.203, Project(red, ChannelCb).Data[0], 1e-9)
	assert.InDelta(t, 240, Project(red, ChannelCr).Data[0], 1e-9)

	black := solid(2, 3, color.Black)
	f := Project(black, ChannelY)
	assert.Equal(t, 2, f.Width)
	assert.Equal(t, 3, f.Height)
	assert.InDelta(t, 16, f.At(1, 2), 1e-9)
}

func TestParseChannel(t *testing.T) {
	for in, want := range map[string]Channel{"Cr": ChannelCr, "cb": ChannelCb, "Y": ChannelY, "": ChannelCr} {
		got, err := ParseChannel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseChannel("hue")
	assert.Error(t, err)
	assert.Equal(t, "cr", ChannelCr.String())
}

func TestCompare_IdenticalImages(t *testing.T) {
	// Scenario B.
	e, err := NewEngine(DefaultOptions())
	require.NoError(t, err)

	img := solid(64, 48, gray)
	img.SetNRGBA(10, 10, color.NRGBA{R: 255, A: 255})

	res, err := e.Compare(img, img)
	require.NoError(t, err)
	for _, v := range res.Map.Data {
		require.Zero(t, v)
	}
	assert.Zero(t, res.Mask.Count())
	assert.Zero(t, res.Stats.Max)
	assert.Equal(t, 64, res.Stats.Width)
}

func TestCompare_FlagsColourDefect(t *testing.T) {
	e, err := NewEngine(DefaultOptions())
	require.NoError(t, err)

	ref := solid(120, 100, gray)
	test := solid(120, 100, gray)
	draw.Draw(test, image.Rect(50, 40, 70, 60), image.NewUniform(color.NRGBA{R: 255, A: 255}), image.Point{}, draw.Src)

	res, err := e.Compare(ref, test)
	require.NoError(t, err)
	assert.True(t, res.Mask.At(60, 50), "defect centre flagged")
	assert.False(t, res.Mask.At(5, 5), "far corner clean")
	assert.Greater(t, res.Map.At(60, 50), 90.0)
	assert.Positive(t, res.Stats.Anomalous)
	assert.InDelta(t, float64(res.Stats.Anomalous)/12000, res.Stats.AnomalyRatio, 1e-12)
}

func TestCompare_LumaOnlyChangeIgnoredByCr(t *testing.T) {
	e, err := NewEngine(DefaultOptions())
	require.NoError(t, err)

	// Grey levels share Cr = 128, so a brightness change is not an anomaly.
	res, err := e.Compare(solid(30, 30, gray), solid(30, 30, color.NRGBA{R: 200, G: 200, B: 200, A: 255}))
	require.NoError(t, err)
	assert.Zero(t, res.Mask.Count())

	luma, err := NewEngine(Options{Channel: ChannelY, Sigma: 5, Threshold: 4})
	require.NoError(t, err)
	res, err = luma.Compare(solid(30, 30, gray), solid(30, 30, color.NRGBA{R: 200, G: 200, B: 200, A: 255}))
	require.NoError(t, err)
	assert.Equal(t, 900, res.Mask.Count())
}

func TestCompare_DimensionMismatch(t *testing.T) {
	e, err := NewEngine(DefaultOptions())
	require.NoError(t, err)
	_, err = e.Compare(solid(10, 10, gray), solid(10, 11, gray))
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "10x11")

	_, err = AbsDiff(NewField(2, 2), NewField(3, 2))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestDifferenceMap_SmoothSigned(t *testing.T) {
	ref, test := NewField(40, 40), NewField(40, 40)
	for y := range 40 {
		for x := range 40 {
			ref.Set(x, y, float64(10*(x%2)))
			test.Set(x, y, 5)
		}
	}

	absFirst, err := NewEngine(Options{Channel: ChannelCr, Sigma: 2})
	require.NoError(t, err)
	m, err := absFirst.DifferenceMap(ref, test)
	require.NoError(t, err)
	assert.InDelta(t, 5, m.At(20, 20), 1e-9)

	signed, err := NewEngine(Options{Channel: ChannelCr, Sigma: 2, SmoothSigned: true})
	require.NoError(t, err)
	m, err = signed.DifferenceMap(ref, test)
	require.NoError(t, err)
	assert.Less(t, m.At(20, 20), 0.5)
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.Error(t, Options{Channel: Channel(5)}.Validate())
	assert.Error(t, Options{Sigma: -1}.Validate())
	assert.Error(t, Options{Threshold: -0.5}.Validate())
	_, err := NewEngine(Options{Sigma: -2})
	assert.Error(t, err)
}

func TestThreshold_Monotonic(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("raising the threshold never adds pixels to the mask", prop.ForAll(
		func(vals []float64, t1, dt float64) bool {
			f := &Field{Width: len(vals), Height: 1, Data: vals}
			lo, hi := Threshold(f, t1), Threshold(f, t1+dt)
			for i := range vals {
				if hi.Bits[i] && !lo.Bits[i] {
					return false
				}
			}
			return hi.Count() <= lo.Count()
		},
		gen.SliceOf(gen.Float64Range(0, 50)), gen.Float64Range(0, 50), gen.Float64Range(0, 20),
	))
	properties.TestingRun(t)
}

func TestThreshold_StrictlyGreater(t *testing.T) {
	f := &Field{Width: 3, Height: 1, Data: []float64{3.9, 4, 4.1}}
	m := Threshold(f, 4)
	assert.Equal(t, []bool{false, false, true}, m.Bits)
}

func TestComputeStats(t *testing.T) {
	f := &Field{Width: 2, Height: 2, Data: []float64{0, 1, 2, 3}}
	s := ComputeStats(f, Threshold(f, 1.5))
	assert.InDelta(t, 1.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.StdDev, 1e-12)
	assert.InDelta(t, 3, s.Max, 0)
	assert.Equal(t, 2, s.Anomalous)
	assert.InDelta(t, 0.5, s.AnomalyRatio, 0)

	one := ComputeStats(&Field{Width: 1, Height: 1, Data: []float64{7}}, nil)
	assert.Zero(t, one.StdDev)
	assert.InDelta(t, 7, one.P99, 0)

	assert.Equal(t, Stats{}, ComputeStats(&Field{}, nil))
}
