package server

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter_Nil(t *testing.T) {
	var l *Limiter
	assert.Nil(t, NewLimiter(0))
	assert.True(t, l.TryAcquire())
	l.Release()
	assert.Equal(t, 0, l.InUse())
	assert.Equal(t, 0, l.Capacity())
}

func TestLimiter_Slots(t *testing.T) {
	l := NewLimiter(2)
	assert.Equal(t, 2, l.Capacity())
	assert.True(t, l.TryAcquire())
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	assert.Equal(t, 2, l.InUse())

	l.Release()
	assert.True(t, l.TryAcquire())
}

func TestLimiter_Concurrent(t *testing.T) {
	l := NewLimiter(3)
	var peak, cur atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !l.TryAcquire() {
				return
			}
			n := cur.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			cur.Add(-1)
			l.Release()
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 0, l.InUse())
}
