package barcode_test

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/barcode"
	"github.com/MeKo-Tech/boardcmp/internal/testutil"
)

func decoder(t *testing.T) barcode.Backend {
	t.Helper()
	be, err := barcode.NewBackend("gozxing")
	require.NoError(t, err)
	return be
}

func TestGozxing_SingleMarker(t *testing.T) {
	m, err := testutil.RenderMarker("canto_direito_sup", 6)
	require.NoError(t, err)
	size := m.Bounds().Dx()

	canvas := testutil.Solid(size+80, size+80, color.White)
	for y := range size {
		for x := range size {
			canvas.SetNRGBA(40+x, 40+y, m.NRGBAAt(x, y))
		}
	}

	res, err := decoder(t).Decode(context.Background(), canvas, barcode.Options{})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "canto_direito_sup", res[0].Value)
	assert.Equal(t, barcode.FormatQR, res[0].Type)

	quad, ok := res[0].Quad()
	require.True(t, ok)
	want := [4][2]float64{{40, 40}, {float64(40 + size), 40}, {float64(40 + size), float64(40 + size)}, {40, float64(40 + size)}}
	for i := range want {
		assert.InDelta(t, want[i][0], quad[i].X, 3, "corner %d x", i)
		assert.InDelta(t, want[i][1], quad[i].Y, 3, "corner %d y", i)
	}
}

func TestGozxing_BoardWindingFollowsMarker(t *testing.T) {
	b, err := testutil.RenderBoard(testutil.DefaultBoardSpec())
	require.NoError(t, err)

	res, err := decoder(t).Decode(context.Background(), b.Image, barcode.Options{Multi: true})
	require.NoError(t, err)

	found := map[string]barcode.Result{}
	for _, r := range res {
		found[r.Value] = r
	}
	require.Len(t, found, 4, "all four corner markers decode")

	for role, label := range testutil.DefaultLabels {
		quad, ok := found[label].Quad()
		require.True(t, ok, label)
		for k := range 4 {
			assert.InDelta(t, b.Markers[role][k].X, quad[k].X, 3, "%s corner %d", label, k)
			assert.InDelta(t, b.Markers[role][k].Y, quad[k].Y, 3, "%s corner %d", label, k)
		}
	}
}

func TestGozxing_EmptyImage(t *testing.T) {
	res, err := decoder(t).Decode(context.Background(), testutil.Solid(120, 90, color.White), barcode.Options{Multi: true})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestGozxing_ROIOffsetsPoints(t *testing.T) {
	b, err := testutil.RenderBoard(testutil.DefaultBoardSpec())
	require.NoError(t, err)

	roi := image.Rect(b.Image.Bounds().Dx()/2, 0, b.Image.Bounds().Dx(), b.Image.Bounds().Dy()/2)
	res, err := decoder(t).Decode(context.Background(), b.Image, barcode.Options{ROI: roi})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, testutil.DefaultLabels[1], res[0].Value)
	assert.InDelta(t, b.Markers[1][0].X, res[0].Points[0].X, 3)
}

func TestGozxing_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := decoder(t).Decode(ctx, testutil.Solid(10, 10, color.White), barcode.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGozxing_MultiDecodesRotatedCapture(t *testing.T) {
	scenes, err := testutil.StandardScenes()
	require.NoError(t, err)
	scene, ok := testutil.SceneByName(scenes, testutil.SceneGood)
	require.True(t, ok)

	res, err := decoder(t).Decode(context.Background(), scene.Image, barcode.Options{Multi: true})
	require.NoError(t, err)

	values := map[string]bool{}
	for _, r := range res {
		values[r.Value] = true
		_, ok := r.Quad()
		assert.True(t, ok, "%s has a four point outline", r.Value)
	}
	for _, label := range testutil.DefaultLabels {
		assert.True(t, values[label], "%s decoded", label)
	}
}
