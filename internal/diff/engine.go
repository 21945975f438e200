package diff

import (
	"errors"
	"fmt"
	"image"
)

// Options configures the difference engine.
type Options struct {
	Channel   Channel
	Sigma     float64
	Threshold float64
	// SmoothSigned smooths the signed channel difference and takes the
	// magnitude afterwards, instead of smoothing the absolute difference.
	SmoothSigned bool
}

// DefaultOptions returns Cr, sigma 5 and threshold 4.
func DefaultOptions() Options {
	return Options{Channel: ChannelCr, Sigma: 5, Threshold: 4}
}

// Validate checks the option ranges.
func (o Options) Validate() error {
	if o.Channel < ChannelY || o.Channel > ChannelCr {
		return fmt.Errorf("invalid channel %d", int(o.Channel))
	}
	if o.Sigma < 0 {
		return errors.New("sigma must be >= 0")
	}
	if o.Threshold < 0 {
		return errors.New("threshold must be >= 0")
	}
	return nil
}

// Result is the outcome of one comparison.
type Result struct {
	Options   Options
	Reference *Field // projected reference channel
	Test      *Field // projected test channel
	Map       *Field // smoothed absolute difference
	Mask      *Mask
	Stats     Stats
}

// Engine compares rectified images.
type Engine struct {
	opts Options
}

// NewEngine validates opts and returns an Engine.
func NewEngine(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Engine{opts: opts}, nil
}

// Options returns the engine configuration.
func (e *Engine) Options() Options { return e.opts }

// Compare computes the difference map and anomaly mask of test against ref.
// The images must have identical dimensions.
func (e *Engine) Compare(ref, test image.Image) (*Result, error) {
	rb, tb := ref.Bounds(), test.Bounds()
	if rb.Dx() != tb.Dx() || rb.Dy() != tb.Dy() {
		return nil, fmt.Errorf("%w: reference %dx%d, test %dx%d", ErrDimensionMismatch, rb.Dx(), rb.Dy(), tb.Dx(), tb.Dy())
	}
	rc := Project(ref, e.opts.Channel)
	tc := Project(test, e.opts.Channel)

	m, err := e.DifferenceMap(rc, tc)
	if err != nil {
		return nil, err
	}
	mask := Threshold(m, e.opts.Threshold)
	return &Result{
		Options:   e.opts,
		Reference: rc,
		Test:      tc,
		Map:       m,
		Mask:      mask,
		Stats:     ComputeStats(m, mask),
	}, nil
}

// DifferenceMap smooths the channel difference of two projected fields.
func (e *Engine) DifferenceMap(ref, test *Field) (*Field, error) {
	d, err := Subtract(ref, test)
	if err != nil {
		return nil, err
	}
	if e.opts.SmoothSigned {
		return Abs(GaussianBlur(d, e.opts.Sigma)), nil
	}
	return GaussianBlur(Abs(d), e.opts.Sigma), nil
}
