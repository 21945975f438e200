// Package barcode provides a pluggable interface for QR marker decoding.
//
// Backends register themselves by name. The pure-Go gozxing backend is
// always linked and is the default. The OpenCV backend ("gocv") is only
// available when building with the `withcv` tag:
//
//	go build -tags=withcv ./...
//
// Every backend reports a marker's outline as four points in the marker's
// own winding: top-left, top-right, bottom-right, bottom-left as read
// relative to the symbol's finder patterns, not relative to the image.
package barcode
