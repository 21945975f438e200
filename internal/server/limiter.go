package server

// Limiter bounds how many passes run at once. A nil Limiter admits everything.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter returns a limiter with n slots, or nil when n <= 0.
func NewLimiter(n int) *Limiter {
	if n <= 0 {
		return nil
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// TryAcquire takes a slot without blocking.
func (l *Limiter) TryAcquire() bool {
	if l == nil {
		return true
	}
	select {
	case l.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a slot taken by TryAcquire.
func (l *Limiter) Release() {
	if l == nil {
		return
	}
	<-l.slots
}

// InUse reports the number of taken slots.
func (l *Limiter) InUse() int {
	if l == nil {
		return 0
	}
	return len(l.slots)
}

// Capacity reports the number of slots.
func (l *Limiter) Capacity() int {
	if l == nil {
		return 0
	}
	return cap(l.slots)
}
