package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/boardcmp/internal/barcode"
	"github.com/MeKo-Tech/boardcmp/internal/calibration"
	"github.com/MeKo-Tech/boardcmp/internal/capture"
	"github.com/MeKo-Tech/boardcmp/internal/diff"
	"github.com/MeKo-Tech/boardcmp/internal/fiducial"
	"github.com/MeKo-Tech/boardcmp/internal/pipeline"
)

const infoLevel = "info"

// roleKey is the configuration key used for a role, e.g. "top_left".
func roleKey(r fiducial.Role) string { return strings.ReplaceAll(r.String(), "-", "_") }

// DefaultConfig returns a configuration with the production defaults.
func DefaultConfig() Config {
	pc := pipeline.DefaultConfig()
	cam := capture.DefaultCameraOptions()
	out := pipeline.DefaultOutputConfig()

	labels := make(map[string]string, len(fiducial.Roles))
	index := make(map[string]int, len(fiducial.Roles))
	for _, r := range fiducial.Roles {
		labels[roleKey(r)] = fiducial.DefaultLabels[r]
		index[roleKey(r)] = fiducial.DefaultIndexTable[r]
	}

	return Config{
		LogLevel: infoLevel,
		Capture: CaptureConfig{
			Source:      "camera",
			CameraID:    cam.ID,
			FrameWidth:  cam.Width,
			FrameHeight: cam.Height,
			StopKey:     "q",
		},
		Fiducial: FiducialConfig{
			Decoder:      pc.Decoder,
			CornerPolicy: pc.CornerPolicy,
			Labels:       labels,
			CornerIndex:  index,
		},
		Calibration: CalibrationConfig{Path: calibration.DefaultPath},
		Output: OutputConfig{
			Dir:          out.Dir,
			FullFrame:    out.FullFrame,
			Reference:    out.Reference,
			Test:         out.Test,
			DiffMap:      out.DiffMap,
			Mask:         out.Mask,
			RGBStrip:     out.RGBStrip,
			ChannelStrip: out.ChannelStrip,
			Format:       "text",
		},
		Compare: CompareConfig{
			Channel:   pc.Compare.Channel.String(),
			Sigma:     pc.Compare.Sigma,
			Threshold: pc.Compare.Threshold,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			MaxConcurrent:   2,
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: true,
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", infoLevel, "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validSources := []string{"camera", "files"}
	if !slices.Contains(validSources, c.Capture.Source) {
		return fmt.Errorf("invalid capture source: %s (must be one of: %s)", c.Capture.Source, strings.Join(validSources, ", "))
	}
	if c.Capture.MaxFrames < 0 {
		return fmt.Errorf("invalid capture.max_frames: %d (must be >= 0)", c.Capture.MaxFrames)
	}

	if c.Fiducial.Decoder != "" && !slices.Contains(barcode.Available(), c.Fiducial.Decoder) {
		return fmt.Errorf("invalid decoder: %s (available: %s)", c.Fiducial.Decoder, strings.Join(barcode.Available(), ", "))
	}
	if _, err := c.LabelMap(); err != nil {
		return err
	}
	if _, err := c.IndexTable(); err != nil {
		return err
	}
	validPolicies := []string{"table", "interior"}
	if !slices.Contains(validPolicies, c.Fiducial.CornerPolicy) {
		return fmt.Errorf("invalid corner policy: %s (must be one of: %s)", c.Fiducial.CornerPolicy, strings.Join(validPolicies, ", "))
	}

	if c.Calibration.Path == "" {
		return fmt.Errorf("calibration.path must not be empty")
	}

	validFormats := []string{"text", "json"}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}

	if _, err := c.CompareOptions(); err != nil {
		return err
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.MaxConcurrent < 0 {
		return fmt.Errorf("invalid server max_concurrent: %d (must be >= 0)", c.Server.MaxConcurrent)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

// rolesOf converts a role-keyed map from the configuration.
func rolesOf[V any](section string, m map[string]V) (map[fiducial.Role]V, error) {
	out := make(map[fiducial.Role]V, len(m))
	for k, v := range m {
		r, err := fiducial.ParseRole(k)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", section, err)
		}
		out[r] = v
	}
	return out, nil
}

// LabelMap returns the configured label for each role, falling back to the defaults.
func (c *Config) LabelMap() (map[fiducial.Role]string, error) {
	m, err := rolesOf("fiducial.labels", c.Fiducial.Labels)
	if err != nil {
		return nil, err
	}
	for r, l := range fiducial.DefaultLabels {
		if _, ok := m[r]; !ok {
			m[r] = l
		}
	}
	if _, err := fiducial.NewLabelMap(m); err != nil {
		return nil, fmt.Errorf("fiducial.labels: %w", err)
	}
	return m, nil
}

// IndexTable returns the configured corner table.
func (c *Config) IndexTable() (fiducial.IndexTable, error) {
	m, err := rolesOf("fiducial.corner_index", c.Fiducial.CornerIndex)
	if err != nil {
		return fiducial.IndexTable{}, err
	}
	t, err := fiducial.NewIndexTable(m)
	if err != nil {
		return fiducial.IndexTable{}, fmt.Errorf("fiducial.corner_index: %w", err)
	}
	return t, nil
}

// CompareOptions converts the compare section into engine options.
func (c *Config) CompareOptions() (diff.Options, error) {
	ch, err := diff.ParseChannel(c.Compare.Channel)
	if err != nil {
		return diff.Options{}, fmt.Errorf("compare.channel: %w", err)
	}
	o := diff.Options{
		Channel:      ch,
		Sigma:        c.Compare.Sigma,
		Threshold:    c.Compare.Threshold,
		SmoothSigned: c.Compare.SmoothSigned,
	}
	if err := o.Validate(); err != nil {
		return diff.Options{}, fmt.Errorf("compare: %w", err)
	}
	return o, nil
}

// CameraOptions converts the capture section for the camera source.
func (c *Config) CameraOptions() capture.CameraOptions {
	return capture.CameraOptions{ID: c.Capture.CameraID, Width: c.Capture.FrameWidth, Height: c.Capture.FrameHeight}
}

// ToPipelineConfig converts the config to the pipeline configuration.
// It assumes Validate has passed.
func (c *Config) ToPipelineConfig() pipeline.Config {
	labels, _ := c.LabelMap()
	table, _ := c.IndexTable()
	opts, _ := c.CompareOptions()

	index := make(map[fiducial.Role]int, len(fiducial.Roles))
	for _, r := range fiducial.Roles {
		index[r] = table[r]
	}
	return pipeline.Config{
		Decoder:      c.Fiducial.Decoder,
		CornerPolicy: c.Fiducial.CornerPolicy,
		Labels:       labels,
		CornerIndex:  index,
		MaxFrames:    c.Capture.MaxFrames,
		Compare:      opts,
		Output: pipeline.OutputConfig{
			Dir:          c.Output.Dir,
			FullFrame:    c.Output.FullFrame,
			Reference:    c.Output.Reference,
			Test:         c.Output.Test,
			DiffMap:      c.Output.DiffMap,
			Mask:         c.Output.Mask,
			RGBStrip:     c.Output.RGBStrip,
			ChannelStrip: c.Output.ChannelStrip,
		},
		Parallel: pipeline.ParallelConfig{
			MaxWorkers:      c.Batch.Workers,
			ContinueOnError: c.Batch.ContinueOnError,
		},
	}
}

// NewPipeline builds a pipeline over a file-backed calibration store.
func (c *Config) NewPipeline() (*pipeline.Pipeline, error) {
	return pipeline.NewBuilder().
		WithConfig(c.ToPipelineConfig()).
		WithStore(calibration.NewFileStore(c.Calibration.Path)).
		Build()
}
