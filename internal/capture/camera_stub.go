//go:build !withcv

package capture

import (
	"context"
	"fmt"
	"image"
)

// Camera is unavailable without the withcv build tag.
type Camera struct{}

// CameraAvailable reports whether this build can open cameras.
const CameraAvailable = false

// OpenCamera always fails in builds without OpenCV.
func OpenCamera(opts CameraOptions) (*Camera, error) {
	return nil, fmt.Errorf("%w: camera %d: rebuild with -tags withcv for camera support", ErrAcquisition, opts.ID)
}

// Next implements Source.
func (*Camera) Next(context.Context) (image.Image, error) {
	return nil, fmt.Errorf("%w: camera support not built", ErrAcquisition)
}

// Close implements Source.
func (*Camera) Close() error { return nil }
