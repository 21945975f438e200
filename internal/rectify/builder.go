package rectify

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// Mode selects how the output size is obtained.
type Mode int

const (
	// ReferenceMode derives the size from the corners and records it.
	ReferenceMode Mode = iota
	// TestMode reuses the recorded size.
	TestMode
)

func (m Mode) String() string {
	if m == TestMode {
		return "test"
	}
	return "reference"
}

// Plan is everything needed to rectify one capture.
type Plan struct {
	Mode       Mode
	Corners    fiducial.CornerSet
	Homography Homography
	Width      int
	Height     int
	Record     calibration.Record
}

// Builder derives rectification plans. The calibration store is written in
// reference mode and read in test mode.
type Builder struct {
	Store calibration.Store
	Now   func() time.Time
}

// NewBuilder returns a Builder over store using the wall clock.
func NewBuilder(store calibration.Store) *Builder {
	return &Builder{Store: store, Now: time.Now}
}

// DeriveSize returns the rectangle size spanned by cs: the longer of the top and
// bottom edges by the longer of the left and right edges, truncated toward zero.
func DeriveSize(cs fiducial.CornerSet) (width, height int) {
	tl, tr, br, bl := cs[fiducial.TopLeft], cs[fiducial.TopRight], cs[fiducial.BottomRight], cs[fiducial.BottomLeft]
	width = int(math.Max(tl.Distance(tr), bl.Distance(br)))
	height = int(math.Max(tl.Distance(bl), tr.Distance(br)))
	return width, height
}

// DestinationCorners returns the corners of the width x height output in TL, TR, BR, BL order.
func DestinationCorners(width, height int) [4]utils.Point {
	w, h := float64(width-1), float64(height-1)
	return [4]utils.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
}

// Reference derives the output size from cs, computes the transform and
// records the size. Nothing is written if the geometry is degenerate.
func (b *Builder) Reference(cs fiducial.CornerSet) (Plan, error) {
	plan, err := b.PlanReference(cs)
	if err != nil {
		return Plan{}, err
	}
	if err := b.Commit(plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// PlanReference is Reference without the store write. The returned plan
// carries the record Commit will persist.
func (b *Builder) PlanReference(cs fiducial.CornerSet) (Plan, error) {
	w, h := DeriveSize(cs)
	plan, err := planFor(ReferenceMode, cs, w, h)
	if err != nil {
		return Plan{}, err
	}
	plan.Record = calibration.NewRecord(w, h, b.now())
	return plan, nil
}

// Commit persists the record of a reference plan. Test plans are left alone.
func (b *Builder) Commit(plan Plan) error {
	if plan.Mode != ReferenceMode {
		return nil
	}
	if b.Store == nil {
		return errors.New("store calibration: no store configured")
	}
	if err := b.Store.Write(plan.Record); err != nil {
		return fmt.Errorf("store calibration: %w", err)
	}
	slog.Info("Calibration recorded", "width", plan.Width, "height", plan.Height)
	return nil
}

// Test reads the recorded size and computes the transform onto it. A missing
// or invalid record is an error; the size is never re-derived from cs.
func (b *Builder) Test(cs fiducial.CornerSet) (Plan, error) {
	rec, err := b.LoadRecord()
	if err != nil {
		return Plan{}, err
	}
	return TestPlan(rec, cs)
}

// TestPlan maps cs onto the size held by an already loaded record.
func TestPlan(rec calibration.Record, cs fiducial.CornerSet) (Plan, error) {
	if err := rec.Validate(); err != nil {
		return Plan{}, err
	}
	plan, err := planFor(TestMode, cs, rec.Width, rec.Height)
	if err != nil {
		return Plan{}, err
	}
	plan.Record = rec
	return plan, nil
}

// LoadRecord reads and validates the stored calibration.
func (b *Builder) LoadRecord() (calibration.Record, error) {
	if b.Store == nil {
		return calibration.Record{}, fmt.Errorf("load calibration: %w", calibration.ErrNotFound)
	}
	rec, err := b.Store.Read()
	if err != nil {
		return calibration.Record{}, fmt.Errorf("load calibration: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return calibration.Record{}, fmt.Errorf("load calibration: %w", err)
	}
	return rec, nil
}

// Build dispatches on mode.
func (b *Builder) Build(mode Mode, cs fiducial.CornerSet) (Plan, error) {
	if mode == TestMode {
		return b.Test(cs)
	}
	return b.Reference(cs)
}

// minSide is the smallest output side length; below it the destination corners coincide.
const minSide = 2

func planFor(mode Mode, cs fiducial.CornerSet, w, h int) (Plan, error) {
	if w <= 0 || h <= 0 {
		return Plan{}, &DegenerateError{Width: w, Height: h, Reason: "non-positive output size"}
	}
	if w < minSide || h < minSide {
		return Plan{}, &DegenerateError{Width: w, Height: h, Reason: fmt.Sprintf("output size below %d pixels", minSide)}
	}
	H, err := ComputeHomography(cs, DestinationCorners(w, h))
	if err != nil {
		var de *DegenerateError
		if errors.As(err, &de) {
			de.Width, de.Height = w, h
		}
		return Plan{}, err
	}
	return Plan{Mode: mode, Corners: cs, Homography: H, Width: w, Height: h}, nil
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}
