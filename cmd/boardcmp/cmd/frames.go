package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/boardcmp/internal/capture"
	"github.com/MeKo-Tech/boardcmp/internal/config"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
)

// openFrames returns the frame source for a capture pass: the given files in
// order when any are named (or the configured source is "files"), else the
// camera. A camera capture stops when the stop key is typed on stdin.
func openFrames(cmd *cobra.Command, cfg *config.Config, args []string, recursive bool) (fiducial.FrameSource, func(), error) {
	if len(args) > 0 || cfg.Capture.Source == "files" {
		files, err := capture.OpenFiles(args, recursive)
		if err != nil {
			return nil, nil, err
		}
		slog.Debug("Reading frames from files", "count", files.Remaining())
		return files, func() { _ = files.Close() }, nil
	}

	cam, err := capture.OpenCamera(cfg.CameraOptions())
	if err != nil {
		return nil, nil, err
	}
	src := capture.NewStoppable(cam)
	if key := cfg.Capture.StopKey; key != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Capturing from camera %d; type %q and Enter to stop\n", cfg.Capture.CameraID, key)
		go capture.StopOnKey(cmd.InOrStdin(), key, src)
	}
	return src, func() {
		src.Stop()
		_ = src.Close()
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
