package fiducial

import (
	"fmt"
	"log/slog"
)

// Detection is one decoded marker: its text and outline.
type Detection struct {
	Label   string
	Polygon Polygon
}

// Observations records the latest polygon seen for each role. It is a value
// type; Fold returns an updated copy and never mutates its input.
type Observations struct {
	Polygons [4]Polygon
	Seen     [4]bool
}

// With returns a copy of o with role r set to p.
func (o Observations) With(r Role, p Polygon) Observations {
	o.Polygons[r] = p
	o.Seen[r] = true
	return o
}

// Has reports whether role r has been observed.
func (o Observations) Has(r Role) bool { return r.Valid() && o.Seen[r] }

// Count returns the number of observed roles.
func (o Observations) Count() int {
	n := 0
	for _, s := range o.Seen {
		if s {
			n++
		}
	}
	return n
}

// Complete reports whether all four roles have been observed.
func (o Observations) Complete() bool { return o.Count() == len(Roles) }

// Missing lists the roles not yet observed, in CornerSet order.
func (o Observations) Missing() []Role {
	var missing []Role
	for _, r := range Roles {
		if !o.Seen[r] {
			missing = append(missing, r)
		}
	}
	return missing
}

// Err returns nil when complete, or an error wrapping ErrIncomplete naming the missing roles.
func (o Observations) Err() error {
	if o.Complete() {
		return nil
	}
	return fmt.Errorf("%w: observed %d/4, missing %v", ErrIncomplete, o.Count(), o.Missing())
}

// Fold adds one frame's detections to o. Detections whose label maps to no
// role are ignored, and a later polygon for a role replaces an earlier one.
func Fold(o Observations, dets []Detection, labels *LabelMap) Observations {
	for _, d := range dets {
		r, ok := labels.Role(d.Label)
		if !ok {
			continue
		}
		if !o.Seen[r] {
			slog.Debug("Fiducial observed", "role", r.String(), "label", d.Label)
		}
		o = o.With(r, d.Polygon)
	}
	return o
}
