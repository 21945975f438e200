// Package fiducial turns decoded corner markers into the four outer corners of the board.
//
// Each of the four markers carries a role (top-left, top-right, bottom-right,
// bottom-left). Detections are folded frame by frame into Observations until
// every role has been seen; a Selector then picks one corner of each marker's
// polygon to form the CornerSet handed to rectification.
package fiducial

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// Role identifies which corner of the board a marker sits on.
type Role int

const (
	TopLeft Role = iota
	TopRight
	BottomRight
	BottomLeft
)

// Roles lists every role in CornerSet order.
var Roles = [4]Role{TopLeft, TopRight, BottomRight, BottomLeft}

var (
	// ErrIncomplete means fewer than four roles were observed.
	ErrIncomplete = errors.New("incomplete fiducial set")

	// ErrUnknownRole is returned by ParseRole.
	ErrUnknownRole = errors.New("unknown fiducial role")
)

var roleNames = [4]string{"top-left", "top-right", "bottom-right", "bottom-left"}

func (r Role) String() string {
	if r < TopLeft || r > BottomLeft {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// Valid reports whether r is one of the four roles.
func (r Role) Valid() bool { return r >= TopLeft && r <= BottomLeft }

// ParseRole accepts "top-left", "top_left", "topleft" or "tl" style names, case-insensitively.
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	switch key {
	case "topleft", "tl":
		return TopLeft, nil
	case "topright", "tr":
		return TopRight, nil
	case "bottomright", "br":
		return BottomRight, nil
	case "bottomleft", "bl":
		return BottomLeft, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Polygon is a marker outline in decoder winding order.
type Polygon [4]utils.Point

// Centroid returns the mean of the polygon's corners.
func (p Polygon) Centroid() utils.Point { return utils.Centroid(p[:]) }

// CornerSet holds the board's outer corners in TL, TR, BR, BL order.
type CornerSet [4]utils.Point

// Points returns the corners as a slice.
func (c CornerSet) Points() []utils.Point { return []utils.Point{c[0], c[1], c[2], c[3]} }

// Corner returns the corner for role r.
func (c CornerSet) Corner(r Role) utils.Point { return c[r] }
