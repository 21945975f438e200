// Package diff computes chrominance difference maps between rectified captures.
//
// Both images are projected into BT.601 studio-range YCbCr, one channel is
// kept, the per-pixel absolute difference is smoothed with a Gaussian and the
// result is thresholded into an anomaly mask.
package diff

import (
	"errors"
	"fmt"
)

// ErrDimensionMismatch is returned when two inputs do not have the same size.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// Field is a row-major scalar image.
type Field struct {
	Width  int
	Height int
	Data   []float64
}

// NewField allocates a zeroed w x h field.
func NewField(w, h int) *Field {
	return &Field{Width: w, Height: h, Data: make([]float64, w*h)}
}

// At returns the value at (x, y).
func (f *Field) At(x, y int) float64 { return f.Data[y*f.Width+x] }

// Set stores v at (x, y).
func (f *Field) Set(x, y int, v float64) { f.Data[y*f.Width+x] = v }

// Clone returns a deep copy.
func (f *Field) Clone() *Field {
	c := NewField(f.Width, f.Height)
	copy(c.Data, f.Data)
	return c
}

func sameSize(a, b *Field) error {
	if a.Width != b.Width || a.Height != b.Height {
		return fmt.Errorf("%w: %dx%d vs %dx%d", ErrDimensionMismatch, a.Width, a.Height, b.Width, b.Height)
	}
	return nil
}

// Subtract returns a - b.
func Subtract(a, b *Field) (*Field, error) {
	if err := sameSize(a, b); err != nil {
		return nil, err
	}
	out := NewField(a.Width, a.Height)
	for i := range out.Data {
		out.Data[i] = a.Data[i] - b.Data[i]
	}
	return out, nil
}

// AbsDiff returns |a - b|.
func AbsDiff(a, b *Field) (*Field, error) {
	out, err := Subtract(a, b)
	if err != nil {
		return nil, err
	}
	return Abs(out), nil
}

// Abs replaces every value of f with its magnitude and returns f.
func Abs(f *Field) *Field {
	for i, v := range f.Data {
		if v < 0 {
			f.Data[i] = -v
		}
	}
	return f
}

// Mask is a boolean per-pixel field.
type Mask struct {
	Width  int
	Height int
	Bits   []bool
}

// At reports whether (x, y) is flagged.
func (m *Mask) At(x, y int) bool { return m.Bits[y*m.Width+x] }

// Count returns the number of flagged pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Threshold flags every pixel strictly greater than t.
func Threshold(f *Field, t float64) *Mask {
	m := &Mask{Width: f.Width, Height: f.Height, Bits: make([]bool, len(f.Data))}
	for i, v := range f.Data {
		m.Bits[i] = v > t
	}
	return m
}
