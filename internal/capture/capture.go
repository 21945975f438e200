// Package capture provides frame sources for capture sessions: a sequence of
// image files and, when built with the withcv tag, a live camera.
package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
)

var (
	// ErrAcquisition wraps failures to obtain a frame from a source.
	ErrAcquisition = errors.New("frame acquisition failed")
	// ErrStopped is returned once the operator ends a session. It wraps io.EOF
	// so sessions treat it like an exhausted source.
	ErrStopped = fmt.Errorf("capture stopped: %w", io.EOF)
)

// Source yields frames until it returns an error wrapping io.EOF.
type Source interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Stoppable wraps a Source so that it reports ErrStopped once Stop is called.
type Stoppable struct {
	Source
	once sync.Once
	done chan struct{}
}

// NewStoppable wraps src.
func NewStoppable(src Source) *Stoppable {
	return &Stoppable{Source: src, done: make(chan struct{})}
}

// Stop ends the session. It is safe to call more than once and from any goroutine.
func (s *Stoppable) Stop() { s.once.Do(func() { close(s.done) }) }

// Next returns ErrStopped after Stop, otherwise the next frame of the wrapped source.
func (s *Stoppable) Next(ctx context.Context) (image.Image, error) {
	select {
	case <-s.done:
		return nil, ErrStopped
	default:
	}
	return s.Source.Next(ctx)
}

// StopOnKey reads lines from r and calls s.Stop when one equals key,
// ignoring case and surrounding blanks. It returns when r is exhausted.
func StopOnKey(r io.Reader, key string, s *Stoppable) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.EqualFold(strings.TrimSpace(sc.Text()), key) {
			s.Stop()
			return
		}
	}
}
