//go:build withcv

package capture

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"
)

// Camera reads frames from a video device through OpenCV.
type Camera struct {
	cap   *gocv.VideoCapture
	frame gocv.Mat
}

// CameraAvailable reports whether this build can open cameras.
const CameraAvailable = true

// OpenCamera opens the device and requests the configured resolution.
func OpenCamera(opts CameraOptions) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(opts.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: open camera %d: %w", ErrAcquisition, opts.ID, err)
	}
	if opts.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
	}
	if opts.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	slog.Info("Camera opened", "id", opts.ID,
		"width", vc.Get(gocv.VideoCaptureFrameWidth), "height", vc.Get(gocv.VideoCaptureFrameHeight))
	return &Camera{cap: vc, frame: gocv.NewMat()}, nil
}

// Next grabs one frame. A failed read is an acquisition error, not the end of the stream.
func (c *Camera) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ok := c.cap.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, fmt.Errorf("%w: camera read returned no frame", ErrAcquisition)
	}
	img, err := c.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAcquisition, err)
	}
	return img, nil
}

// Close releases the device.
func (c *Camera) Close() error {
	_ = c.frame.Close()
	return c.cap.Close()
}
