// Package mempool pools scratch buffers for the per-pixel hot paths of the
// difference engine.
package mempool

import (
	"sync"
)

var float64Pools sync.Map // key: size class (int), value: *sync.Pool

// sizeClass rounds n up to a multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	const step = 1024
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func poolFor(cls int) *sync.Pool {
	pAny, _ := float64Pools.LoadOrStore(cls, &sync.Pool{New: func() any {
		buf := make([]float64, cls)
		return &buf
	}})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is stored
}

// GetFloat64 returns a buffer of length n. Its contents are unspecified.
// Return it with PutFloat64 when done.
func GetFloat64(n int) []float64 {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	bp, ok := poolFor(cls).Get().(*[]float64)
	if !ok || cap(*bp) < cls {
		buf := make([]float64, cls)
		return buf[:n]
	}
	return (*bp)[:n]
}

// PutFloat64 returns buf to its pool. Nil slices and slices that did not
// come from GetFloat64 with a full size class are ignored.
func PutFloat64(buf []float64) {
	if buf == nil {
		return
	}
	c := cap(buf)
	if c < 1024 || c%1024 != 0 {
		return
	}
	full := buf[:c]
	poolFor(c).Put(&full)
}
