package pipeline

import (
	"context"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
	"github.com/MeKo-Tech/boardcmp/internal/testutil"
)

var fixedNow = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

func square(x, y, s float64) fiducial.Polygon {
	return fiducial.Polygon{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}}
}

// markerDetections places 20px markers in the corners of a 200x150 frame.
// Their interior corners span 140x90.
func markerDetections() []fiducial.Detection {
	l := fiducial.DefaultLabels
	return []fiducial.Detection{
		{Label: l[fiducial.TopLeft], Polygon: square(10, 10, 20)},
		{Label: l[fiducial.TopRight], Polygon: square(170, 10, 20)},
		{Label: l[fiducial.BottomRight], Polygon: square(170, 120, 20)},
		{Label: l[fiducial.BottomLeft], Polygon: square(10, 120, 20)},
	}
}

type countingDecoder struct {
	dets  []fiducial.Detection
	calls atomic.Int32
}

func (d *countingDecoder) Decode(context.Context, image.Image) ([]fiducial.Detection, error) {
	d.calls.Add(1)
	return d.dets, nil
}

func newTestPipeline(t *testing.T, store calibration.Store, dec fiducial.Decoder, outDir string) *Pipeline {
	t.Helper()
	p, err := NewBuilder().
		WithStore(store).
		WithDecoder(dec).
		WithCornerPolicy("interior").
		WithOutputDir(outDir).
		WithClock(fixedNow).
		Build()
	require.NoError(t, err)
	return p
}

func frame() image.Image { return testutil.Gradient(200, 150) }

