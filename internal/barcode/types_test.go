package barcode

import (
	"context"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

type stubBackend struct{}

func (stubBackend) Name() string { return "stub" }
func (stubBackend) Decode(context.Context, image.Image, Options) ([]Result, error) {
	return nil, nil
}

func TestRegistry(t *testing.T) {
	assert.Contains(t, Available(), DefaultBackend)

	be, err := NewBackend("")
	require.NoError(t, err)
	assert.Equal(t, "gozxing", be.Name())

	_, err = NewBackend("nope")
	assert.ErrorIs(t, err, ErrNoBackend)

	Register("stub", func() (Backend, error) { return stubBackend{}, nil })
	be, err = NewBackend("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", be.Name())
}

func TestResult_Quad(t *testing.T) {
	r := Result{Points: []utils.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}}
	q, ok := r.Quad()
	require.True(t, ok)
	assert.Equal(t, utils.Point{X: 1, Y: 1}, q[2])

	_, ok = Result{Points: r.Points[:3]}.Quad()
	assert.False(t, ok)
}

func TestRectFromPoints(t *testing.T) {
	assert.True(t, rectFromPoints(nil).Empty())
	r := rectFromPoints([]utils.Point{{X: 2.5, Y: 3}, {X: 10.2, Y: 1}})
	assert.Equal(t, image.Rect(2, 1, 11, 4), r)
}

func TestOutlineFromFinders(t *testing.T) {
	// 21-module symbol, 4 px modules, at (100, 50): finder centres sit 3.5 modules in.
	tl := utils.Point{X: 114, Y: 64}
	tr := utils.Point{X: 170, Y: 64}
	bl := utils.Point{X: 114, Y: 120}
	pts := outlineFromFinders(bl, tl, tr, 4)

	want := []utils.Point{{X: 100, Y: 50}, {X: 184, Y: 50}, {X: 184, Y: 134}, {X: 100, Y: 134}}
	require.Len(t, pts, 4)
	for i := range want {
		assert.InDelta(t, want[i].X, pts[i].X, 1e-9, "corner %d", i)
		assert.InDelta(t, want[i].Y, pts[i].Y, 1e-9, "corner %d", i)
	}

	// Without a module estimate the outline spans the centres.
	pts = outlineFromFinders(bl, tl, tr, 0)
	assert.Equal(t, tl, pts[0])
	assert.Equal(t, utils.Point{X: 170, Y: 120}, pts[2])
}

func TestContainsDuplicate(t *testing.T) {
	a := Result{Value: "x", BBox: image.Rect(0, 0, 10, 10)}
	assert.True(t, containsDuplicate([]Result{a}, Result{Value: "x", BBox: image.Rect(1, 1, 11, 11)}))
	assert.False(t, containsDuplicate([]Result{a}, Result{Value: "y", BBox: image.Rect(1, 1, 11, 11)}))
	assert.False(t, containsDuplicate([]Result{a}, Result{Value: "x", BBox: image.Rect(50, 50, 60, 60)}))
}
