package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// calibrateCmd runs the reference pass.
var calibrateCmd = &cobra.Command{
	Use:   "calibrate [frames...]",
	Short: "Capture the reference board and record its rectified size",
	Long: `Capture frames until all four corner markers have been seen, derive the
board size from the marker corners, record it in the calibration file and
write the rectified reference image.

Frames come from the camera unless image files or directories are given.

Examples:
  boardcmp calibrate
  boardcmp calibrate --camera-id 0
  boardcmp calibrate frame_001.png frame_002.png
  boardcmp calibrate captures/ --recursive --format json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         runCalibrate,
}

func runCalibrate(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	recursive, _ := cmd.Flags().GetBool("recursive")

	p, err := cfg.NewPipeline()
	if err != nil {
		return err
	}
	src, closeSrc, err := openFrames(cmd, cfg, args, recursive)
	if err != nil {
		return err
	}
	defer closeSrc()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	res, err := p.Calibrate(ctx, src)
	if err != nil {
		return fmt.Errorf("calibration failed: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Board calibrated: %dx%d\n", res.Plan.Width, res.Plan.Height)
	fmt.Fprintf(&b, "Frames read: %d\n", res.Frames)
	fmt.Fprintf(&b, "Calibration record: %s\n", cfg.Calibration.Path)
	listArtifacts(&b, "Artifacts", res.Artifacts)
	fmt.Fprintf(&b, "Duration: %s\n", res.Duration)

	return writeResult(cmd, cfg.Output.Format, res.Summary(), b.String())
}

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.Flags().BoolP("recursive", "r", false, "search directories recursively for frames")
}

// GetCalibrateCommand returns the calibrate command for testing purposes.
func GetCalibrateCommand() *cobra.Command {
	return calibrateCmd
}

