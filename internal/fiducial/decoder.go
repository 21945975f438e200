package fiducial

import (
	"context"
	"image"

	"github.com/MeKo-Tech/boardcmp/internal/barcode"
)

// Decoder finds markers in a frame.
type Decoder interface {
	Decode(ctx context.Context, img image.Image) ([]Detection, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, img image.Image) ([]Detection, error)

// Decode implements Decoder.
func (f DecoderFunc) Decode(ctx context.Context, img image.Image) ([]Detection, error) {
	return f(ctx, img)
}

// BarcodeDecoder decodes markers with a barcode backend. Symbols without a
// four-point outline or without text are dropped.
type BarcodeDecoder struct {
	Backend barcode.Backend
	Options barcode.Options
}

// NewBarcodeDecoder returns a multi-symbol decoder over the named backend.
func NewBarcodeDecoder(backend string) (*BarcodeDecoder, error) {
	be, err := barcode.NewBackend(backend)
	if err != nil {
		return nil, err
	}
	return &BarcodeDecoder{Backend: be, Options: barcode.Options{Multi: true}}, nil
}

// Decode implements Decoder.
func (d *BarcodeDecoder) Decode(ctx context.Context, img image.Image) ([]Detection, error) {
	results, err := d.Backend.Decode(ctx, img, d.Options)
	if err != nil {
		return nil, err
	}
	dets := make([]Detection, 0, len(results))
	for _, r := range results {
		quad, ok := r.Quad()
		if !ok || r.Value == "" {
			continue
		}
		dets = append(dets, Detection{Label: r.Value, Polygon: Polygon(quad)})
	}
	return dets, nil
}
