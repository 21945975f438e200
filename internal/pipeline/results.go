package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/boardcmp/internal/common"
	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
)

// PointJSON is a corner in image coordinates.
type PointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DetectionJSON is one decoded marker.
type DetectionJSON struct {
	Label   string      `json:"label"`
	Polygon []PointJSON `json:"polygon"`
}

// CaptureSummary is the serializable form of a CaptureResult.
type CaptureSummary struct {
	Mode       string               `json:"mode"`
	Frames     int                  `json:"frames"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Corners    map[string]PointJSON `json:"corners"`
	Homography [9]float64           `json:"homography"`
	Detections []DetectionJSON      `json:"detections"`
	Artifacts  []string             `json:"artifacts,omitempty"`
	Timings    []common.Lap         `json:"timings,omitempty"`
	DurationNs int64                `json:"duration_ns"`
}

// InspectSummary adds comparison statistics to a CaptureSummary.
type InspectSummary struct {
	CaptureSummary
	Stats     *diff.Stats `json:"stats,omitempty"`
	Artifacts []string    `json:"diff_artifacts,omitempty"`
}

// BatchItemSummary is one line of a batch report.
type BatchItemSummary struct {
	Index  int             `json:"index"`
	Path   string          `json:"path"`
	Error  string          `json:"error,omitempty"`
	Result *InspectSummary `json:"result,omitempty"`
}

// Summary converts r for JSON output.
func (r *CaptureResult) Summary() CaptureSummary {
	s := CaptureSummary{
		Mode:       r.Mode.String(),
		Frames:     r.Frames,
		Width:      r.Plan.Width,
		Height:     r.Plan.Height,
		Corners:    make(map[string]PointJSON, len(fiducial.Roles)),
		Homography: r.Plan.Homography,
		Artifacts:  r.Artifacts,
		Timings:    r.Timings,
		DurationNs: r.Duration.Nanoseconds(),
	}
	for _, role := range fiducial.Roles {
		c := r.Corners.Corner(role)
		s.Corners[role.String()] = PointJSON{X: c.X, Y: c.Y}
	}
	for _, d := range r.Detections {
		dj := DetectionJSON{Label: d.Label}
		for _, p := range d.Polygon {
			dj.Polygon = append(dj.Polygon, PointJSON{X: p.X, Y: p.Y})
		}
		s.Detections = append(s.Detections, dj)
	}
	return s
}

// Summary converts r for JSON output.
func (r *InspectResult) Summary() InspectSummary {
	s := InspectSummary{Artifacts: r.DiffArtifacts}
	if r.CaptureResult != nil {
		s.CaptureSummary = r.CaptureResult.Summary()
	}
	if r.Diff != nil {
		st := r.Diff.Stats
		s.Stats = &st
	}
	return s
}

// SummarizeBatch converts batch items for JSON output.
func SummarizeBatch(items []BatchItem) []BatchItemSummary {
	out := make([]BatchItemSummary, len(items))
	for i, it := range items {
		out[i] = BatchItemSummary{Index: it.Index, Path: it.Path}
		if it.Err != nil {
			out[i].Error = it.Err.Error()
			continue
		}
		if it.Result != nil {
			s := it.Result.Summary()
			out[i].Result = &s
		}
	}
	return out
}

// ToJSON renders v as indented JSON.
func ToJSON(v any) (string, error) {
	if v == nil {
		return "", errors.New("nil result")
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FormatStats renders comparison statistics as plain text.
func FormatStats(s diff.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "size:       %dx%d\n", s.Width, s.Height)
	fmt.Fprintf(&b, "mean:       %.4f\n", s.Mean)
	fmt.Fprintf(&b, "std dev:    %.4f\n", s.StdDev)
	fmt.Fprintf(&b, "max:        %.4f\n", s.Max)
	fmt.Fprintf(&b, "p99:        %.4f\n", s.P99)
	fmt.Fprintf(&b, "anomalous:  %d (%.3f%%)\n", s.Anomalous, 100*s.AnomalyRatio)
	return b.String()
}
