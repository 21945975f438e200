// Package common provides timing and runtime helpers shared by the passes and the server.
package common

import (
	"fmt"
	"strings"
	"time"
)

// Timer measures one named span.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewTimer starts an unnamed timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// NewNamedTimer starts a timer labelled name.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop records and returns the elapsed time.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration returns the time recorded by Stop.
func (t *Timer) Duration() time.Duration { return t.duration }

// Name returns the timer label.
func (t *Timer) Name() string { return t.name }

func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return t.duration.String()
}

// Lap is one finished stage of a Stopwatch.
type Lap struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ns"`
}

// Stopwatch records consecutive stages of a pass. It is not safe for concurrent use.
type Stopwatch struct {
	start time.Time
	last  time.Time
	laps  []Lap
}

// NewStopwatch starts a stopwatch.
func NewStopwatch() *Stopwatch {
	now := time.Now()
	return &Stopwatch{start: now, last: now}
}

// Lap closes the current stage under name and returns its duration.
func (s *Stopwatch) Lap(name string) time.Duration {
	now := time.Now()
	d := now.Sub(s.last)
	s.last = now
	s.laps = append(s.laps, Lap{Name: name, Duration: d})
	return d
}

// Laps returns the recorded stages in order.
func (s *Stopwatch) Laps() []Lap { return append([]Lap(nil), s.laps...) }

// Total returns the time since the stopwatch started.
func (s *Stopwatch) Total() time.Duration { return time.Since(s.start) }

func (s *Stopwatch) String() string {
	parts := make([]string, 0, len(s.laps))
	for _, l := range s.laps {
		parts = append(parts, fmt.Sprintf("%s=%v", l.Name, l.Duration.Round(time.Microsecond)))
	}
	return strings.Join(parts, " ")
}
