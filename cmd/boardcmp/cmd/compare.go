package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
	"github.com/MeKo-Tech/boardcmp/internal/report"
	"github.com/MeKo-Tech/boardcmp/internal/utils"
)

// compareCmd runs the difference engine on two rectified images.
var compareCmd = &cobra.Command{
	Use:   "compare REFERENCE TEST",
	Short: "Compare two rectified board images on one colour channel",
	Long: `Compare two already rectified images of the same size. Both are converted to
YCbCr, the selected channel is smoothed, the absolute difference is taken and
pixels above the threshold are flagged.

Examples:
  boardcmp compare img/imagem_referencia.png img/imagem_teste_retificada.png
  boardcmp compare ref.png test.png --sigma 3 --threshold 6
  boardcmp compare ref.png test.png --channel cb --format json --report diff.pdf`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE:         runCompare,
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	ref, _, err := utils.LoadImage(args[0])
	if err != nil {
		return fmt.Errorf("failed to load reference image: %w", err)
	}
	test, _, err := utils.LoadImage(args[1])
	if err != nil {
		return fmt.Errorf("failed to load test image: %w", err)
	}

	p, err := cfg.NewPipeline()
	if err != nil {
		return err
	}
	d, paths, err := p.Compare(ref, test)
	if err != nil {
		return fmt.Errorf("comparison failed: %w", err)
	}

	if path := reportPath(cmd, cfg); path != "" {
		if err := report.FromComparison(d, ref, test).WriteFile(path); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		slog.Info("Report written", "path", path)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Channel: %s, sigma %.2f, threshold %.2f\n", d.Options.Channel, d.Options.Sigma, d.Options.Threshold)
	b.WriteString(pipeline.FormatStats(d.Stats))
	listArtifacts(&b, "Artifacts", paths)

	out := struct {
		Options   compareOptionsJSON `json:"options"`
		Stats     diff.Stats         `json:"stats"`
		Artifacts []string           `json:"artifacts,omitempty"`
	}{optionsJSON(d.Options), d.Stats, paths}
	if err := writeResult(cmd, cfg.Output.Format, out, b.String()); err != nil {
		return err
	}
	return checkAnomalies(cmd, d.Stats.Anomalous)
}

type compareOptionsJSON struct {
	Channel      string  `json:"channel"`
	Sigma        float64 `json:"sigma"`
	Threshold    float64 `json:"threshold"`
	SmoothSigned bool    `json:"smooth_signed"`
}

func optionsJSON(o diff.Options) compareOptionsJSON {
	return compareOptionsJSON{
		Channel:      o.Channel.String(),
		Sigma:        o.Sigma,
		Threshold:    o.Threshold,
		SmoothSigned: o.SmoothSigned,
	}
}

func init() {
	rootCmd.AddCommand(compareCmd)

	defaults := diff.DefaultOptions()
	f := compareCmd.Flags()
	f.String("channel", defaults.Channel.String(), "colour channel to compare (y, cb, cr)")
	f.Float64("sigma", defaults.Sigma, "gaussian smoothing sigma (0 disables smoothing)")
	f.Float64("threshold", defaults.Threshold, "absolute difference above which a pixel is anomalous")
	f.Bool("smooth-signed", false, "smooth the signed difference, then take its magnitude")
	f.String("report", "", "write a PDF report to this path")
	f.Bool("fail-on-anomaly", false, "exit with an error when anomalous pixels are found")

	bindFlags(compareCmd, false, []flagBinding{
		{"compare.channel", "channel"},
		{"compare.sigma", "sigma"},
		{"compare.threshold", "threshold"},
		{"compare.smooth_signed", "smooth-signed"},
	})
}

// GetCompareCommand returns the compare command for testing purposes.
func GetCompareCommand() *cobra.Command {
	return compareCmd
}
