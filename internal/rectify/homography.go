// Package rectify maps the board quadrilateral in a capture onto an
// axis-aligned rectangle of calibrated size.
package rectify

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// ErrDegenerate is wrapped by every DegenerateError.
var ErrDegenerate = errors.New("degenerate geometry")

// DegenerateError reports corners that cannot define a rectangle, with the dimensions derived from them.
type DegenerateError struct {
	Width  int
	Height int
	Reason string
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("degenerate geometry: %s (width=%d, height=%d)", e.Reason, e.Width, e.Height)
}

// Is makes errors.Is(err, ErrDegenerate) match.
func (e *DegenerateError) Is(target error) bool { return target == ErrDegenerate }

// Homography is a row-major 3x3 projective transform normalized so that H[8] == 1.
type Homography [9]float64

// Identity is the identity transform.
var Identity = Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}

// ComputeHomography returns the transform mapping src[i] onto dst[i] exactly.
// Both point sets are conditioned (centred, scaled to mean distance sqrt(2))
// before solving the 8x8 system with h22 fixed to 1.
func ComputeHomography(src, dst [4]utils.Point) (Homography, error) {
	ts, ok := conditioner(src)
	if !ok {
		return Homography{}, &DegenerateError{Reason: "source corners coincide"}
	}
	td, ok := conditioner(dst)
	if !ok {
		return Homography{}, &DegenerateError{Reason: "destination corners coincide"}
	}

	A := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := range 4 {
		X, Y := ts.apply(src[i])
		x, y := td.apply(dst[i])
		r := 2 * i
		// x' = (h00 X + h01 Y + h02)/(h20 X + h21 Y + 1)
		A.SetRow(r, []float64{X, Y, 1, 0, 0, 0, -X * x, -Y * x})
		b.SetVec(r, x)
		// y' = (h10 X + h11 Y + h12)/(h20 X + h21 Y + 1)
		A.SetRow(r+1, []float64{0, 0, 0, X, Y, 1, -X * y, -Y * y})
		b.SetVec(r+1, y)
	}

	var h mat.VecDense
	if err := h.SolveVec(A, b); err != nil {
		return Homography{}, &DegenerateError{Reason: "corners are collinear: " + err.Error()}
	}
	hn := mat.NewDense(3, 3, []float64{
		h.AtVec(0), h.AtVec(1), h.AtVec(2),
		h.AtVec(3), h.AtVec(4), h.AtVec(5),
		h.AtVec(6), h.AtVec(7), 1,
	})
	// Both sides are conditioned to unit scale, so a vanishing determinant means
	// the quadrilateral collapses onto a line or a point.
	if math.Abs(mat.Det(hn)) < 1e-9 {
		return Homography{}, &DegenerateError{Reason: "corners collapse onto a line"}
	}

	// H = Td^-1 * Hn * Ts
	var left, full mat.Dense
	left.Mul(td.inverse(), hn)
	full.Mul(&left, ts.matrix())

	return fromDense(&full)
}

// Apply maps p through h. It reports false when p maps to infinity.
func (h Homography) Apply(p utils.Point) (utils.Point, bool) {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(w) < 1e-12 {
		return utils.Point{}, false
	}
	return utils.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}, true
}

// Inverse returns the transform undoing h.
func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.Dense()); err != nil {
		return Homography{}, &DegenerateError{Reason: "transform is not invertible: " + err.Error()}
	}
	return fromDense(&inv)
}

// Dense returns h as a gonum matrix.
func (h Homography) Dense() *mat.Dense {
	data := h
	return mat.NewDense(3, 3, data[:])
}

// IsIdentity reports whether h is within tol of the identity, entry by entry.
func (h Homography) IsIdentity(tol float64) bool {
	for i := range h {
		if math.Abs(h[i]-Identity[i]) > tol {
			return false
		}
	}
	return true
}

func fromDense(m *mat.Dense) (Homography, error) {
	s := m.At(2, 2)
	if math.Abs(s) < 1e-12 {
		return Homography{}, &DegenerateError{Reason: "transform maps the origin to infinity"}
	}
	var h Homography
	for r := range 3 {
		for c := range 3 {
			h[3*r+c] = m.At(r, c) / s
		}
	}
	return h, nil
}

// similarity is x -> s*(x - c), used to condition point sets.
type similarity struct {
	s      float64
	cx, cy float64
}

func conditioner(pts [4]utils.Point) (similarity, bool) {
	c := utils.Centroid(pts[:])
	var mean float64
	for _, p := range pts {
		mean += p.Distance(c) / 4
	}
	if mean < 1e-12 {
		return similarity{}, false
	}
	return similarity{s: math.Sqrt2 / mean, cx: c.X, cy: c.Y}, true
}

func (t similarity) apply(p utils.Point) (float64, float64) {
	return t.s * (p.X - t.cx), t.s * (p.Y - t.cy)
}

func (t similarity) matrix() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		t.s, 0, -t.s * t.cx,
		0, t.s, -t.s * t.cy,
		0, 0, 1,
	})
}

func (t similarity) inverse() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1 / t.s, 0, t.cx,
		0, 1 / t.s, t.cy,
		0, 0, 1,
	})
}
