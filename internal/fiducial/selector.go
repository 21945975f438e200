package fiducial

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// Selector picks one corner per marker polygon to form the board's CornerSet.
// Implementations must refuse incomplete observations with ErrIncomplete.
type Selector interface {
	Select(o Observations) (CornerSet, error)
}

// IndexTable selects, for each role, a fixed index into that marker's polygon.
//
// Markers are printed so that the corner facing the board centre is the one
// that lies on the board edge. Which polygon index that is depends on how each
// marker is rotated on the board and on the decoder's winding. With the
// top-left, top-right, bottom-right, bottom-left winding reported by the
// decoders, DefaultIndexTable expects the left-column and right-column markers
// turned in opposite directions: top-left and bottom-right rotated a quarter
// turn counter-clockwise, top-right and bottom-left a quarter turn clockwise.
// Boards printed otherwise need a different table or InteriorSelector.
type IndexTable [4]int

// DefaultIndexTable is the table used by the production boards.
var DefaultIndexTable = IndexTable{TopLeft: 3, TopRight: 2, BottomRight: 1, BottomLeft: 0}

// NewIndexTable builds a table from a role to index mapping. Roles left out keep their default.
func NewIndexTable(m map[Role]int) (IndexTable, error) {
	t := DefaultIndexTable
	for r, idx := range m {
		if !r.Valid() {
			return IndexTable{}, fmt.Errorf("corner index: %w: %d", ErrUnknownRole, int(r))
		}
		t[r] = idx
	}
	return t, t.Validate()
}

// Validate checks every index addresses a polygon corner.
func (t IndexTable) Validate() error {
	for _, r := range Roles {
		if t[r] < 0 || t[r] > 3 {
			return fmt.Errorf("corner index for %s must be in [0,3], got %d", r, t[r])
		}
	}
	return nil
}

// Select implements Selector.
func (t IndexTable) Select(o Observations) (CornerSet, error) {
	if err := o.Err(); err != nil {
		return CornerSet{}, err
	}
	if err := t.Validate(); err != nil {
		return CornerSet{}, err
	}
	var cs CornerSet
	for _, r := range Roles {
		cs[r] = o.Polygons[r][t[r]]
	}
	return cs, nil
}

// InteriorSelector picks, for each marker, the polygon corner closest to the
// centroid of all four markers. It does not depend on marker rotation or decoder winding.
type InteriorSelector struct{}

// Select implements Selector.
func (InteriorSelector) Select(o Observations) (CornerSet, error) {
	if err := o.Err(); err != nil {
		return CornerSet{}, err
	}
	t := InteriorIndex(o)
	return t.Select(o)
}

// InteriorIndex returns, per observed role, the index of the polygon corner
// nearest the centre of the observed markers. Comparing it with a configured
// IndexTable shows whether the table still matches how the markers are printed.
func InteriorIndex(o Observations) IndexTable {
	centres := make([]utils.Point, 0, 4)
	for _, r := range Roles {
		if o.Seen[r] {
			centres = append(centres, o.Polygons[r].Centroid())
		}
	}
	centre := utils.Centroid(centres)

	var t IndexTable
	for _, r := range Roles {
		best, bestDist := 0, math.Inf(1)
		for i, p := range o.Polygons[r] {
			if d := p.Distance(centre); d < bestDist {
				best, bestDist = i, d
			}
		}
		t[r] = best
	}
	return t
}

// Disagreements lists the roles where t and the interior-facing corner of o differ.
func (t IndexTable) Disagreements(o Observations) []Role {
	interior := InteriorIndex(o)
	var out []Role
	for _, r := range Roles {
		if o.Seen[r] && interior[r] != t[r] {
			out = append(out, r)
		}
	}
	return out
}

// NewSelector returns the selector for a policy name: "table" or "interior".
func NewSelector(policy string, table IndexTable) (Selector, error) {
	switch policy {
	case "", "table":
		if err := table.Validate(); err != nil {
			return nil, err
		}
		return table, nil
	case "interior":
		return InteriorSelector{}, nil
	}
	return nil, fmt.Errorf("unknown corner policy %q (want table or interior)", policy)
}
