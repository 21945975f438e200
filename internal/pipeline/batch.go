package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/capture"
	"github.com/MeKo-Tech/boardcmp/internal/common"
)

// ParallelConfig holds configuration for batch inspection.
type ParallelConfig struct {
	MaxWorkers       int  // Number of parallel workers (0 = runtime.NumCPU())
	ContinueOnError  bool // Keep going after a failed capture
	ProgressCallback ProgressCallback
}

// DefaultParallelConfig returns one worker per CPU and continue-on-error.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{MaxWorkers: runtime.NumCPU(), ContinueOnError: true}
}

// BatchItem is the outcome of inspecting one capture file.
type BatchItem struct {
	Index  int
	Path   string
	Result *InspectResult
	Err    error
}

// BatchSummary counts batch outcomes.
type BatchSummary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Anomalous int           `json:"anomalous"`
	Duration  time.Duration `json:"duration_ns"`
}

type batchJob struct {
	index int
	path  string
}

// InspectBatch treats every path as an independent single-frame capture and
// inspects them against ref with a worker pool. Items come back in input
// order. The calibration record is loaded once, before any capture is read.
// With ContinueOnError unset the first failure cancels the remaining work and
// is returned; otherwise failures are reported per item only.
func (p *Pipeline) InspectBatch(ctx context.Context, paths []string, ref image.Image, pc ParallelConfig) ([]BatchItem, error) {
	if len(paths) == 0 {
		return nil, errors.New("no captures provided")
	}
	if ref == nil {
		return nil, stageErr(StageCalibration, ErrNoReference)
	}
	rec, err := p.Geometry.LoadRecord()
	if err != nil {
		return nil, stageErr(StageCalibration, err)
	}
	if pc.MaxWorkers <= 0 {
		pc.MaxWorkers = runtime.NumCPU()
	}
	pc.MaxWorkers = min(pc.MaxWorkers, len(paths))

	progress := pc.ProgressCallback
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(paths))
	defer progress.OnComplete()

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := make(chan batchJob)
	results := make(chan BatchItem, len(paths))

	var wg sync.WaitGroup
	for range pc.MaxWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				item := p.inspectOne(ctx, job, ref, rec)
				results <- item
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, path := range paths {
			select {
			case jobs <- batchJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	items := make([]BatchItem, len(paths))
	for i, path := range paths {
		items[i] = BatchItem{Index: i, Path: path}
	}
	var firstErr error
	done := 0
	for item := range results {
		items[item.Index] = item
		done++
		if item.Err != nil {
			progress.OnError(item.Index, item.Err)
			if !pc.ContinueOnError && firstErr == nil {
				firstErr = fmt.Errorf("capture %d (%s): %w", item.Index, item.Path, item.Err)
				cancel()
			}
		}
		progress.OnProgress(done, len(paths))
	}

	if err := parent.Err(); err != nil {
		return items, err
	}
	if firstErr != nil {
		for i := range items {
			if items[i].Result == nil && items[i].Err == nil {
				items[i].Err = context.Canceled
			}
		}
		return items, firstErr
	}
	return items, nil
}

func (p *Pipeline) inspectOne(ctx context.Context, job batchJob, ref image.Image, rec calibration.Record) BatchItem {
	item := BatchItem{Index: job.index, Path: job.path}
	if err := ctx.Err(); err != nil {
		item.Err = err
		return item
	}
	out := p.Artifacts.Sub(itemDir(job.index, job.path))
	src := capture.NewFileSource(job.path)
	res, err := p.rectifyWith(ctx, src, rec, common.NewStopwatch(), out)
	if err != nil {
		item.Result = &InspectResult{CaptureResult: res}
		item.Err = err
		slog.Warn("Capture failed", "index", job.index, "path", job.path, "error", err)
		return item
	}
	item.Result, item.Err = p.compareCapture(res, ref, out)
	return item
}

func itemDir(index int, path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return fmt.Sprintf("%03d_%s", index, stem)
}

// Summarize counts successes, failures and captures with anomalies.
func Summarize(items []BatchItem, elapsed time.Duration) BatchSummary {
	s := BatchSummary{Total: len(items), Duration: elapsed}
	for _, it := range items {
		switch {
		case it.Err != nil:
			s.Failed++
		default:
			s.Succeeded++
			if it.Result != nil && it.Result.Diff != nil && it.Result.Diff.Stats.Anomalous > 0 {
				s.Anomalous++
			}
		}
	}
	return s
}
