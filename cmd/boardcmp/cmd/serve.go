package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
	"github.com/MeKo-Tech/boardcmp/internal/server"
	"github.com/MeKo-Tech/boardcmp/internal/version"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for rectification and comparison",
	Long: `Start an HTTP server that runs the capture passes on uploaded frames.

The server provides the following endpoints:
  GET  /health       - Health check endpoint
  GET  /calibration  - Current calibration record
  POST /calibrate    - Reference pass over uploaded frames
  POST /rectify      - Test pass over uploaded frames
  POST /compare      - Compare two rectified images
  GET  /ws/compare   - WebSocket compare and inspect with stage events
  GET  /metrics      - Prometheus metrics

Examples:
  boardcmp serve
  boardcmp serve --port 8080
  boardcmp serve --host 0.0.0.0 --port 3000 --max-concurrent 4`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	host := cfg.Server.Host
	if cmd.Flags().Changed("host") {
		host, _ = cmd.Flags().GetString("host")
	}
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port, _ = cmd.Flags().GetInt("port")
	}
	corsOrigin := cfg.Server.CORSOrigin
	if cmd.Flags().Changed("cors-origin") {
		corsOrigin, _ = cmd.Flags().GetString("cors-origin")
	}
	maxUploadSize := cfg.Server.MaxUploadMB
	if cmd.Flags().Changed("max-upload-size") {
		maxUploadSize, _ = cmd.Flags().GetInt("max-upload-size")
	}
	timeout := cfg.Server.TimeoutSec
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetInt("timeout")
	}
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if cmd.Flags().Changed("shutdown-timeout") {
		shutdownTimeout, _ = cmd.Flags().GetInt("shutdown-timeout")
	}
	maxConcurrent := cfg.Server.MaxConcurrent
	if cmd.Flags().Changed("max-concurrent") {
		maxConcurrent, _ = cmd.Flags().GetInt("max-concurrent")
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port number: %d (must be between 1 and 65535)", port)
	}

	// Requests run concurrently, so the server never writes artifacts
	p, err := pipeline.NewBuilder().
		WithConfig(cfg.ToPipelineConfig()).
		WithStore(calibration.NewFileStore(cfg.Calibration.Path)).
		WithOutputDir("").
		Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	srv, err := server.NewServer(server.Config{
		Host:          host,
		Port:          port,
		CORSOrigin:    corsOrigin,
		MaxUploadMB:   int64(maxUploadSize),
		TimeoutSec:    timeout,
		MaxConcurrent: maxConcurrent,
		Pipeline:      p,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(timeout) * time.Second,
		WriteTimeout:      time.Duration(timeout) * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		slog.Info("Starting boardcmp server", "host", host, "port", port, "version", version.String(),
			"calibration", cfg.Calibration.Path, "max_concurrent", maxConcurrent)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		slog.Info("Context cancelled, initiating shutdown")
	}

	slog.Info("Starting graceful shutdown", "timeout", fmt.Sprintf("%ds", shutdownTimeout))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(shutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 60, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Int("max-concurrent", 2, "maximum passes running at once (0 = unlimited)")
}

// GetServeCommand returns the serve command for testing purposes.
func GetServeCommand() *cobra.Command {
	return serveCmd
}
