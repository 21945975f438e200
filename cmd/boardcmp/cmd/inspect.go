package cmd

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/boardcmp/internal/capture"
	"github.com/MeKo-Tech/boardcmp/internal/config"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
	"github.com/MeKo-Tech/boardcmp/internal/report"
	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// errAnomalous is returned with --fail-on-anomaly when any pixel is flagged.
var errAnomalous = errors.New("anomalies detected")

// inspectCmd runs the test pass and compares it with the stored reference.
var inspectCmd = &cobra.Command{
	Use:   "inspect [frames...]",
	Short: "Capture a board, rectify it to the calibrated size and compare it with the reference",
	Long: `Capture frames until all four corner markers have been seen, warp the board
to the calibrated size and compare it with the reference image on the
configured colour channel.

With --batch every given image is inspected as an independent single-frame
capture using a worker pool.

Examples:
  boardcmp inspect
  boardcmp inspect test_frame.png
  boardcmp inspect --reference img/imagem_referencia.png --report out.pdf frame.png
  boardcmp inspect --batch captures/ --recursive --workers 8 --format json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	refPath, _ := cmd.Flags().GetString("reference")
	if refPath == "" {
		refPath = cfg.ToPipelineConfig().Output.ReferencePath()
	}
	ref, _, err := utils.LoadImage(refPath)
	if err != nil {
		return fmt.Errorf("failed to load reference image %s: %w", refPath, err)
	}

	p, err := cfg.NewPipeline()
	if err != nil {
		return err
	}

	batch, _ := cmd.Flags().GetBool("batch")
	if batch {
		return runInspectBatch(cmd, cfg, p, args, ref)
	}
	return runInspectSingle(cmd, cfg, p, args, ref)
}

func runInspectSingle(cmd *cobra.Command, cfg *config.Config, p *pipeline.Pipeline, args []string, ref image.Image) error {
	recursive, _ := cmd.Flags().GetBool("recursive")
	src, closeSrc, err := openFrames(cmd, cfg, args, recursive)
	if err != nil {
		return err
	}
	defer closeSrc()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	res, err := p.Inspect(ctx, src, ref)
	if err != nil {
		return fmt.Errorf("inspection failed: %w", err)
	}

	if path := reportPath(cmd, cfg); path != "" {
		if err := report.FromInspection(res, ref).WriteFile(path); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		slog.Info("Report written", "path", path)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Board rectified: %dx%d from %d frame(s)\n", res.Plan.Width, res.Plan.Height, res.Frames)
	b.WriteString(pipeline.FormatStats(res.Diff.Stats))
	listArtifacts(&b, "Artifacts", append(append([]string{}, res.Artifacts...), res.DiffArtifacts...))
	fmt.Fprintf(&b, "Duration: %s\n", res.Duration)

	if err := writeResult(cmd, cfg.Output.Format, res.Summary(), b.String()); err != nil {
		return err
	}
	return checkAnomalies(cmd, res.Diff.Stats.Anomalous)
}

func runInspectBatch(cmd *cobra.Command, cfg *config.Config, p *pipeline.Pipeline, args []string, ref image.Image) error {
	if len(args) == 0 {
		return errors.New("batch inspection requires at least one image file or directory")
	}
	recursive, _ := cmd.Flags().GetBool("recursive")
	paths, err := capture.DiscoverImages(args, recursive)
	if err != nil {
		return err
	}

	pc := pipeline.ParallelConfig{
		MaxWorkers:      cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
	}
	if cmd.Flags().Changed("workers") {
		pc.MaxWorkers, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("continue-on-error") {
		pc.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		pc.ProgressCallback = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Inspecting")
	} else {
		pc.ProgressCallback = pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	start := time.Now()
	items, err := p.InspectBatch(ctx, paths, ref, pc)
	if err != nil {
		return fmt.Errorf("batch inspection failed: %w", err)
	}
	summary := pipeline.Summarize(items, time.Since(start))

	var b strings.Builder
	for _, it := range items {
		switch {
		case it.Err != nil:
			fmt.Fprintf(&b, "%s: error: %v\n", it.Path, it.Err)
		case it.Result != nil && it.Result.Diff != nil:
			st := it.Result.Diff.Stats
			fmt.Fprintf(&b, "%s: %d anomalous pixel(s), max %.4f\n", it.Path, st.Anomalous, st.Max)
		}
	}
	fmt.Fprintf(&b, "Total: %d, succeeded: %d, failed: %d, anomalous: %d (%s)\n",
		summary.Total, summary.Succeeded, summary.Failed, summary.Anomalous, summary.Duration)

	out := struct {
		Summary pipeline.BatchSummary        `json:"summary"`
		Items   []pipeline.BatchItemSummary `json:"items"`
	}{summary, pipeline.SummarizeBatch(items)}
	if err := writeResult(cmd, cfg.Output.Format, out, b.String()); err != nil {
		return err
	}
	if summary.Failed > 0 && !pc.ContinueOnError {
		return fmt.Errorf("%d of %d inspection(s) failed", summary.Failed, summary.Total)
	}
	return checkAnomalies(cmd, summary.Anomalous)
}

// reportPath resolves the PDF destination from --report or output.report.
func reportPath(cmd *cobra.Command, cfg *config.Config) string {
	if cmd.Flags().Changed("report") {
		path, _ := cmd.Flags().GetString("report")
		return path
	}
	return cfg.Output.Report
}

func checkAnomalies(cmd *cobra.Command, n int) error {
	fail, _ := cmd.Flags().GetBool("fail-on-anomaly")
	if fail && n > 0 {
		return fmt.Errorf("%w: %d", errAnomalous, n)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().String("reference", "", "reference image (default: the rectified reference in the output directory)")
	inspectCmd.Flags().Bool("batch", false, "inspect every image as an independent capture")
	inspectCmd.Flags().BoolP("recursive", "r", false, "search directories recursively")
	inspectCmd.Flags().String("report", "", "write a PDF report to this path")
	inspectCmd.Flags().Bool("progress", false, "show a progress bar during batch inspection")
	inspectCmd.Flags().IntP("workers", "w", 4, "number of parallel workers for batch inspection")
	inspectCmd.Flags().Bool("continue-on-error", true, "keep going after a failed capture in batch mode")
	inspectCmd.Flags().Bool("fail-on-anomaly", false, "exit with an error when anomalous pixels are found")
}

// GetInspectCommand returns the inspect command for testing purposes.
func GetInspectCommand() *cobra.Command {
	return inspectCmd
}
