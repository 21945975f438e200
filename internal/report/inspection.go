package report

import (
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
)

// FromInspection lays out the standard inspection report: the annotated
// capture, both rectified images, the channel strip, the difference map and the mask.
func FromInspection(res *pipeline.InspectResult, ref image.Image) *Report {
	r := &Report{}
	if res == nil {
		return r
	}
	if res.CaptureResult != nil {
		r.Add("Capture", res.Annotated)
	}
	if res.Diff == nil {
		return r
	}
	AddComparison(r, res.Diff, ref, rectified(res))
	return r
}

// FromComparison lays out a report for two already rectified images.
func FromComparison(d *diff.Result, ref, test image.Image) *Report {
	r := &Report{}
	AddComparison(r, d, ref, test)
	return r
}

// AddComparison appends the comparison pages and statistics of d.
func AddComparison(r *Report, d *diff.Result, ref, test image.Image) {
	ch := strings.ToUpper(d.Options.Channel.String())
	if ref != nil && test != nil {
		r.Add("Reference | Test", diff.SideBySide(ref, test))
	}
	r.Add(fmt.Sprintf("%s channels", ch), diff.SideBySide(diff.ChannelImage(d.Reference), diff.ChannelImage(d.Test)))
	r.Add(fmt.Sprintf("Smoothed %s difference (max %.2f)", ch, d.Stats.Max), diff.Heatmap(d.Map, 0))
	r.Add(fmt.Sprintf("Threshold > %g (%d px)", d.Options.Threshold, d.Stats.Anomalous), diff.MaskImage(d.Mask))

	r.Set("Channel", ch)
	r.Set("Sigma", fmt.Sprintf("%g", d.Options.Sigma))
	r.Set("Threshold", fmt.Sprintf("%g", d.Options.Threshold))
	r.Set("MeanDifference", fmt.Sprintf("%.4f", d.Stats.Mean))
	r.Set("MaxDifference", fmt.Sprintf("%.4f", d.Stats.Max))
	r.Set("AnomalousPixels", fmt.Sprintf("%d", d.Stats.Anomalous))
}

func rectified(res *pipeline.InspectResult) image.Image {
	if res.CaptureResult == nil || res.Rectified == nil {
		return nil
	}
	return res.Rectified
}
