// Package calibration persists the canonical rectified size of the target.
//
// A Record is written once by the reference pass and read by every later
// test pass, so that test captures are warped to exactly the same
// dimensions as the reference image.
package calibration

import (
	"errors"
	"fmt"
	"time"
)

const (
	// CurrentVersion is the only record format version understood by this package.
	CurrentVersion = 1

	// TimestampLayout is the human-readable layout of Record.Timestamp.
	TimestampLayout = "2006-01-02 15:04:05"
)

var (
	// ErrNotFound is returned by Store.Read when no record has been written.
	ErrNotFound = errors.New("calibration record not found")

	// ErrInvalid is returned when a record violates its invariants or cannot be parsed.
	ErrInvalid = errors.New("invalid calibration record")
)

// Record is the persisted reference geometry.
type Record struct {
	Width     int    `json:"width" yaml:"width"`
	Height    int    `json:"height" yaml:"height"`
	Timestamp string `json:"timestamp" yaml:"timestamp"`
	Version   int    `json:"version" yaml:"version"`
}

// NewRecord builds a current-version record stamped with now.
func NewRecord(width, height int, now time.Time) Record {
	return Record{
		Width:     width,
		Height:    height,
		Timestamp: now.Format(TimestampLayout),
		Version:   CurrentVersion,
	}
}

// Validate checks the record invariants. Violations wrap ErrInvalid.
func (r Record) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: width and height must be positive, got %dx%d", ErrInvalid, r.Width, r.Height)
	}
	if r.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d (want %d)", ErrInvalid, r.Version, CurrentVersion)
	}
	return nil
}

// CreatedAt parses Timestamp in the local time zone.
func (r Record) CreatedAt() (time.Time, error) {
	t, err := time.ParseInLocation(TimestampLayout, r.Timestamp, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %v", ErrInvalid, r.Timestamp, err)
	}
	return t, nil
}

func (r Record) String() string {
	return fmt.Sprintf("%dx%d (v%d, %s)", r.Width, r.Height, r.Version, r.Timestamp)
}
