package fiducial

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
)

// FrameSource yields captured frames. Next returns an error wrapping io.EOF
// once the source is exhausted or stopped by the operator.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
}

// FrameEvent describes one processed frame, for live preview and progress reporting.
type FrameEvent struct {
	Index        int
	Frame        image.Image
	Detections   []Detection
	Observations Observations
}

// CollectOptions tunes Collect.
type CollectOptions struct {
	// MaxFrames bounds the number of frames read; zero means unbounded.
	MaxFrames int
	// OnFrame is called after each frame has been folded.
	OnFrame func(FrameEvent)
}

// Capture is the outcome of a completed capture session.
type Capture struct {
	// Frame is the frame in which the last missing role was observed.
	Frame        image.Image
	Detections   []Detection
	Observations Observations
	Frames       int
}

// Collect reads frames until all four roles have been observed. Running out of
// frames, hitting MaxFrames or cancelling ctx before then yields ErrIncomplete;
// the partial Capture is still returned for diagnostics. Any other source or
// decoder failure is returned as is.
func Collect(ctx context.Context, src FrameSource, dec Decoder, labels *LabelMap, opts CollectOptions) (*Capture, error) {
	c := &Capture{}
	for opts.MaxFrames <= 0 || c.Frames < opts.MaxFrames {
		if err := ctx.Err(); err != nil {
			return c, fmt.Errorf("%w: %w", c.Observations.Err(), err)
		}
		frame, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return c, fmt.Errorf("%w after %d frames", c.Observations.Err(), c.Frames)
			}
			return c, err
		}
		c.Frames++

		dets, err := dec.Decode(ctx, frame)
		if err != nil {
			return c, fmt.Errorf("decode frame %d: %w", c.Frames, err)
		}
		c.Observations = Fold(c.Observations, dets, labels)
		c.Frame = frame
		c.Detections = dets

		if opts.OnFrame != nil {
			opts.OnFrame(FrameEvent{Index: c.Frames, Frame: frame, Detections: dets, Observations: c.Observations})
		}
		if c.Observations.Complete() {
			slog.Info("All fiducials detected", "frames", c.Frames)
			return c, nil
		}
	}
	return c, fmt.Errorf("%w after %d frames", c.Observations.Err(), c.Frames)
}
