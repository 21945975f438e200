package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/common"
	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
	"github.com/MeKo-Tech/boardcmp/internal/rectify"
)

// CaptureResult is the shared outcome of a reference or test pass.
type CaptureResult struct {
	Mode       rectify.Mode
	Frames     int
	Detections []fiducial.Detection
	Corners    fiducial.CornerSet
	Plan       rectify.Plan
	// Frame is the capture in which the fiducial set completed.
	Frame     image.Image
	Annotated *image.RGBA
	Rectified *image.NRGBA
	Artifacts []string
	Timings   []common.Lap
	Duration  time.Duration
}

// InspectResult is a test pass followed by a comparison with the reference.
type InspectResult struct {
	*CaptureResult
	Diff          *diff.Result
	DiffArtifacts []string
}

// Calibrate runs the reference pass: capture until every marker is seen,
// derive the board size, rectify the completing frame and record the size.
// The record is written last, so a failed warp or artifact write leaves the
// previous calibration in place.
func (p *Pipeline) Calibrate(ctx context.Context, src fiducial.FrameSource) (*CaptureResult, error) {
	sw := common.NewStopwatch()
	res, err := p.capture(ctx, src, sw)
	if err != nil {
		return res, err
	}

	plan, err := p.Geometry.PlanReference(res.Corners)
	if err != nil {
		return res, stageErr(StageGeometry, err)
	}
	res, err = p.finish(res, rectify.ReferenceMode, plan, sw, p.Artifacts)
	if err != nil {
		return res, err
	}
	if err := p.Geometry.Commit(plan); err != nil {
		return res, stageErr(StageCalibration, err)
	}
	return res, nil
}

// Rectify runs the test pass. The calibration record is read and validated
// before any frame is acquired, so a missing record never costs a capture.
func (p *Pipeline) Rectify(ctx context.Context, src fiducial.FrameSource) (*CaptureResult, error) {
	sw := common.NewStopwatch()
	rec, err := p.Geometry.LoadRecord()
	if err != nil {
		return nil, stageErr(StageCalibration, err)
	}
	p.lap(sw, StageCalibration, nil)

	return p.rectifyWith(ctx, src, rec, sw, p.Artifacts)
}

func (p *Pipeline) rectifyWith(ctx context.Context, src fiducial.FrameSource, rec calibration.Record, sw *common.Stopwatch, out *Artifacts) (*CaptureResult, error) {
	res, err := p.capture(ctx, src, sw)
	if err != nil {
		return res, err
	}
	plan, err := rectify.TestPlan(rec, res.Corners)
	if err != nil {
		return res, stageErr(StageGeometry, err)
	}
	return p.finish(res, rectify.TestMode, plan, sw, out)
}

// Inspect runs the test pass and compares the rectified capture with ref.
func (p *Pipeline) Inspect(ctx context.Context, src fiducial.FrameSource, ref image.Image) (*InspectResult, error) {
	if ref == nil {
		return nil, stageErr(StageCalibration, ErrNoReference)
	}
	res, err := p.Rectify(ctx, src)
	if err != nil {
		return &InspectResult{CaptureResult: res}, err
	}
	return p.compareCapture(res, ref, p.Artifacts)
}

func (p *Pipeline) compareCapture(res *CaptureResult, ref image.Image, out *Artifacts) (*InspectResult, error) {
	ir := &InspectResult{CaptureResult: res}
	d, paths, err := p.compare(ref, res.Rectified, out)
	ir.Diff, ir.DiffArtifacts = d, paths
	return ir, err
}

// Compare runs the difference engine on two already rectified images and
// writes the comparison artifacts.
func (p *Pipeline) Compare(ref, test image.Image) (*diff.Result, []string, error) {
	return p.compare(ref, test, p.Artifacts)
}

func (p *Pipeline) compare(ref, test image.Image, out *Artifacts) (*diff.Result, []string, error) {
	start := time.Now()
	d, err := p.Engine.Compare(ref, test)
	if err != nil {
		return nil, nil, stageErr(StageCompare, err)
	}
	p.emit(StageEvent{Stage: StageCompare, Elapsed: time.Since(start)})
	slog.Info("Comparison finished",
		"channel", d.Options.Channel.String(),
		"anomalous", d.Stats.Anomalous,
		"max", d.Stats.Max,
		"duration", time.Since(start))

	if out == nil {
		return d, nil, nil
	}
	names := out.Names()
	paths, err := out.writeAll(
		namedImage{names.RGBStrip, diff.SideBySide(ref, test)},
		namedImage{names.ChannelStrip, diff.SideBySide(diff.ChannelImage(d.Reference), diff.ChannelImage(d.Test))},
		namedImage{names.DiffMap, diff.Heatmap(d.Map, 0)},
		namedImage{names.Mask, diff.MaskImage(d.Mask)},
	)
	if err != nil {
		return d, paths, stageErr(StageArtifacts, err)
	}
	return d, paths, nil
}

// capture collects a complete fiducial set and selects the board corners.
func (p *Pipeline) capture(ctx context.Context, src fiducial.FrameSource, sw *common.Stopwatch) (*CaptureResult, error) {
	opts := fiducial.CollectOptions{
		MaxFrames: p.cfg.MaxFrames,
		OnFrame: func(ev fiducial.FrameEvent) {
			slog.Debug("Frame processed", "stage", StageCapture, "frame", ev.Index, "detected", ev.Observations.Count())
		},
	}
	c, err := fiducial.Collect(ctx, src, p.Decoder, p.Labels, opts)
	res := &CaptureResult{}
	if c != nil {
		res.Frames, res.Frame, res.Detections = c.Frames, c.Frame, c.Detections
	}
	if err != nil {
		if c != nil && c.Frame != nil {
			res.Annotated = RenderDetections(c.Frame, c.Detections, c.Observations, nil)
		}
		return res, stageErr(StageCapture, err)
	}
	p.lap(sw, StageCapture, &StageEvent{Frames: c.Frames, Detected: c.Observations.Count()})

	cs, err := p.Selector.Select(c.Observations)
	if err != nil {
		return res, stageErr(StageSelect, err)
	}
	if t, ok := p.Selector.(fiducial.IndexTable); ok {
		if off := t.Disagreements(c.Observations); len(off) > 0 {
			slog.Warn("Corner table disagrees with marker geometry; check marker rotation", "roles", off)
		}
	}
	res.Corners = cs
	res.Annotated = RenderDetections(c.Frame, c.Detections, c.Observations, &cs)
	p.lap(sw, StageSelect, nil)
	return res, nil
}

func (p *Pipeline) finish(res *CaptureResult, mode rectify.Mode, plan rectify.Plan, sw *common.Stopwatch, out *Artifacts) (*CaptureResult, error) {
	res.Mode, res.Plan = mode, plan
	p.lap(sw, StageGeometry, nil)

	rectified, err := rectify.Rectify(res.Frame, plan)
	if err != nil {
		return res, stageErr(StageWarp, err)
	}
	res.Rectified = rectified
	p.lap(sw, StageWarp, nil)

	if out != nil {
		names := out.Names()
		target := names.Test
		if mode == rectify.ReferenceMode {
			target = names.Reference
		}
		paths, err := out.writeAll(
			namedImage{names.FullFrame, res.Annotated},
			namedImage{target, res.Rectified},
		)
		res.Artifacts = paths
		if err != nil {
			return res, stageErr(StageArtifacts, err)
		}
		p.lap(sw, StageArtifacts, nil)
	}

	res.Timings = sw.Laps()
	res.Duration = sw.Total()
	slog.Info("Pass finished",
		"mode", mode.String(),
		"frames", res.Frames,
		"width", plan.Width,
		"height", plan.Height,
		"duration", res.Duration)
	return res, nil
}

func (p *Pipeline) lap(sw *common.Stopwatch, s Stage, ev *StageEvent) {
	d := sw.Lap(string(s))
	e := StageEvent{Stage: s, Elapsed: d}
	if ev != nil {
		e.Frames, e.Detected = ev.Frames, ev.Detected
	}
	p.emit(e)
}

// Frames returns a source that yields imgs in order and then io.EOF.
func Frames(imgs ...image.Image) fiducial.FrameSource {
	return &frameList{imgs: imgs}
}

type frameList struct {
	imgs []image.Image
	next int
}

func (f *frameList) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.next >= len(f.imgs) {
		return nil, fmt.Errorf("frame list: %w", io.EOF)
	}
	img := f.imgs[f.next]
	f.next++
	return img, nil
}
