package capture

// CameraOptions selects and configures a camera device.
type CameraOptions struct {
	ID     int
	Width  int
	Height int
}

// DefaultCameraOptions matches the inspection rig: device 1 at 1280x960.
func DefaultCameraOptions() CameraOptions {
	return CameraOptions{ID: 1, Width: 1280, Height: 960}
}
