package fiducial

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// square returns an axis-aligned marker outline with corners in image TL, TR, BR, BL order.
func square(x, y, s float64) Polygon {
	return Polygon{{X: x, Y: y}, {X: x + s, Y: y}, {X: x + s, Y: y + s}, {X: x, Y: y + s}}
}

// rotateWinding re-labels a polygon as a decoder would for a marker printed
// rotated: marker index k lands on image corner (k+shift)%4.
func rotateWinding(p Polygon, shift int) Polygon {
	var out Polygon
	for k := range 4 {
		out[k] = p[(k+shift)%4]
	}
	return out
}

// boardObservations places 20px markers in the corners of a 300x200 board.
// ccw and cw give the winding shift for markers turned counter-clockwise (3) or clockwise (1).
func boardObservations(shifts [4]int) Observations {
	var o Observations
	o = o.With(TopLeft, rotateWinding(square(10, 10, 20), shifts[TopLeft]))
	o = o.With(TopRight, rotateWinding(square(270, 10, 20), shifts[TopRight]))
	o = o.With(BottomRight, rotateWinding(square(270, 170, 20), shifts[BottomRight]))
	o = o.With(BottomLeft, rotateWinding(square(10, 170, 20), shifts[BottomLeft]))
	return o
}

var wantInterior = CornerSet{{X: 30, Y: 30}, {X: 270, Y: 30}, {X: 270, Y: 170}, {X: 30, Y: 170}}

func TestDefaultIndexTable_KnownOrientation(t *testing.T) {
	// Left column: TL turned counter-clockwise, BL clockwise; right column mirrors it.
	o := boardObservations([4]int{TopLeft: 3, TopRight: 1, BottomRight: 3, BottomLeft: 1})

	cs, err := DefaultIndexTable.Select(o)
	require.NoError(t, err)
	assert.Equal(t, wantInterior, cs)
	assert.Empty(t, DefaultIndexTable.Disagreements(o))
}

func TestDefaultIndexTable_UprightMarkersPickOuterCorners(t *testing.T) {
	// Markers printed upright: the default table no longer faces the interior.
	o := boardObservations([4]int{})

	cs, err := DefaultIndexTable.Select(o)
	require.NoError(t, err)
	assert.NotEqual(t, wantInterior, cs)
	assert.Equal(t, utils.Point{X: 10, Y: 30}, cs[TopLeft])
	assert.ElementsMatch(t, Roles[:], DefaultIndexTable.Disagreements(o))

	upright := IndexTable{TopLeft: 2, TopRight: 3, BottomRight: 0, BottomLeft: 1}
	cs, err = upright.Select(o)
	require.NoError(t, err)
	assert.Equal(t, wantInterior, cs)
}

func TestInteriorSelector_AnyOrientation(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("interior corners are independent of marker rotation", prop.ForAll(
		func(a, b, c, d int) bool {
			o := boardObservations([4]int{a, b, c, d})
			cs, err := InteriorSelector{}.Select(o)
			return err == nil && cs == wantInterior
		},
		gen.IntRange(0, 3), gen.IntRange(0, 3), gen.IntRange(0, 3), gen.IntRange(0, 3),
	))
	properties.TestingRun(t)
}

func TestSelect_Incomplete(t *testing.T) {
	// Three of four roles: no corner set is produced.
	var o Observations
	o = o.With(TopLeft, square(0, 0, 1)).With(TopRight, square(5, 0, 1)).With(BottomLeft, square(0, 5, 1))

	for _, sel := range []Selector{DefaultIndexTable, InteriorSelector{}} {
		cs, err := sel.Select(o)
		require.ErrorIs(t, err, ErrIncomplete)
		assert.Equal(t, CornerSet{}, cs)
		assert.Contains(t, err.Error(), "bottom-right")
	}
}

func TestIndexTable_Validate(t *testing.T) {
	_, err := NewIndexTable(map[Role]int{TopLeft: 4})
	assert.Error(t, err)

	_, err = NewIndexTable(map[Role]int{Role(8): 1})
	assert.ErrorIs(t, err, ErrUnknownRole)

	tbl, err := NewIndexTable(map[Role]int{BottomLeft: 2})
	require.NoError(t, err)
	assert.Equal(t, IndexTable{3, 2, 1, 2}, tbl)

	o := boardObservations([4]int{})
	_, err = IndexTable{0, 0, 0, -1}.Select(o)
	assert.Error(t, err)
}

func TestNewSelector(t *testing.T) {
	sel, err := NewSelector("", DefaultIndexTable)
	require.NoError(t, err)
	assert.Equal(t, DefaultIndexTable, sel)

	sel, err = NewSelector("interior", IndexTable{})
	require.NoError(t, err)
	assert.IsType(t, InteriorSelector{}, sel)

	_, err = NewSelector("table", IndexTable{9, 0, 0, 0})
	assert.Error(t, err)

	_, err = NewSelector("nearest", DefaultIndexTable)
	assert.Error(t, err)
}

func TestCornerSet(t *testing.T) {
	cs := wantInterior
	assert.Len(t, cs.Points(), 4)
	assert.Equal(t, utils.Point{X: 270, Y: 170}, cs.Corner(BottomRight))
}
