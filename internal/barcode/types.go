package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"
	"sync"

	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// DefaultBackend is the backend used when none is configured.
const DefaultBackend = "gozxing"

// ErrNoBackend is returned when a requested backend is not linked into the binary.
var ErrNoBackend = errors.New("barcode: backend not available")

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
)

func (f Format) String() string {
	if f == FormatQR {
		return "qr"
	}
	return "unknown"
}

// Options controls backend decoding behavior.
type Options struct {
	// TryHarder enables more exhaustive search (slower but more robust).
	TryHarder bool

	// Multi enables multi-symbol detection in a single image.
	Multi bool

	// ROI optionally restricts decoding to a sub-rectangle of the image.
	// If zero-sized or out of bounds, backends should ignore it.
	ROI image.Rectangle
}

// Result represents a decoded marker.
type Result struct {
	Type   Format
	Value  string
	Points []utils.Point   // Outline in marker winding when available
	BBox   image.Rectangle // Bounding box if derivable from points
}

// Quad returns the four outline points, or false if the backend did not provide exactly four.
func (r Result) Quad() ([4]utils.Point, bool) {
	var q [4]utils.Point
	if len(r.Points) != 4 {
		return q, false
	}
	copy(q[:], r.Points)
	return q, true
}

// Backend is a pluggable barcode decoder implementation.
type Backend interface {
	Name() string
	Decode(ctx context.Context, img image.Image, opts Options) ([]Result, error)
}

// Factory constructs a Backend.
type Factory func() (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a backend available under name. It is intended to be called from init.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// NewBackend returns the backend registered under name; an empty name selects DefaultBackend.
func NewBackend(name string) (Backend, error) {
	if name == "" {
		name = DefaultBackend
	}
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrNoBackend, name, Available())
	}
	return f()
}

// Available lists the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func rectFromPoints(pts []utils.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Floor(maxX))+1, int(math.Floor(maxY))+1)
}
