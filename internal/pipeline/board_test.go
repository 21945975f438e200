package pipeline_test

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
	"github.com/MeKo-Tech/boardcmp/internal/testutil"
)

func TestBoard_ReferenceThenDefectiveCapture(t *testing.T) {
	if testing.Short() {
		t.Skip("decodes full synthetic frames")
	}
	spec := testutil.DefaultBoardSpec()
	good, err := testutil.RenderBoard(spec)
	require.NoError(t, err)
	bad, err := testutil.RenderBoard(spec)
	require.NoError(t, err)
	defect := image.Rect(240, 160, 280, 200)
	testutil.AddDefect(bad.Image, defect, color.NRGBA{R: 220, G: 30, B: 30, A: 255})

	store := calibration.NewMemoryStore()
	p, err := pipeline.NewBuilder().WithStore(store).WithOutputDir(t.TempDir()).Build()
	require.NoError(t, err)

	refScene := testutil.PlaceBoard(good, 700, 480, testutil.Placement{Scale: 1, OffsetX: 90, OffsetY: 60})
	ref, err := p.Calibrate(context.Background(), pipeline.Frames(refScene.Image))
	require.NoError(t, err)

	rec, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, ref.Rectified.Bounds().Dx(), rec.Width)
	assert.Equal(t, ref.Rectified.Bounds().Dy(), rec.Height)

	testScene := testutil.PlaceBoard(bad, 760, 560, testutil.Placement{Scale: 1.05, AngleDeg: 5, OffsetX: 110, OffsetY: 40})
	res, err := p.Inspect(context.Background(), pipeline.Frames(testScene.Image), ref.Rectified)
	require.NoError(t, err)
	assert.Equal(t, ref.Rectified.Bounds(), res.Rectified.Bounds())

	// The defect centre in rectified coordinates.
	tl := good.Corners[0]
	cx := int(math.Round(float64(defect.Min.X+defect.Max.X)/2 - tl.X))
	cy := int(math.Round(float64(defect.Min.Y+defect.Max.Y)/2 - tl.Y))
	require.NotNil(t, res.Diff)
	assert.True(t, res.Diff.Mask.At(cx, cy), "defect at (%d,%d) flagged", cx, cy)
	assert.Positive(t, res.Diff.Stats.Anomalous)
	assert.Len(t, res.DiffArtifacts, 4)
}
