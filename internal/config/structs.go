//nolint:lll
package config

// Config represents the complete configuration for boardcmp. It covers every
// command (calibrate, inspect, compare, serve) and is loaded from a config
// file, BOARDCMP_ environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Capture     CaptureConfig     `mapstructure:"capture" yaml:"capture" json:"capture"`
	Fiducial    FiducialConfig    `mapstructure:"fiducial" yaml:"fiducial" json:"fiducial"`
	Calibration CalibrationConfig `mapstructure:"calibration" yaml:"calibration" json:"calibration"`
	Output      OutputConfig      `mapstructure:"output" yaml:"output" json:"output"`
	Compare     CompareConfig     `mapstructure:"compare" yaml:"compare" json:"compare"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch inspection configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// CaptureConfig selects where frames come from.
type CaptureConfig struct {
	Source      string `mapstructure:"source" yaml:"source" json:"source"`
	CameraID    int    `mapstructure:"camera_id" yaml:"camera_id" json:"camera_id"`
	FrameWidth  int    `mapstructure:"frame_width" yaml:"frame_width" json:"frame_width"`
	FrameHeight int    `mapstructure:"frame_height" yaml:"frame_height" json:"frame_height"`
	MaxFrames   int    `mapstructure:"max_frames" yaml:"max_frames" json:"max_frames"`
	StopKey     string `mapstructure:"stop_key" yaml:"stop_key" json:"stop_key"`
}

// FiducialConfig controls marker decoding and corner selection. Map keys are
// role names: top_left, top_right, bottom_right, bottom_left.
type FiducialConfig struct {
	Decoder      string            `mapstructure:"decoder" yaml:"decoder" json:"decoder"`
	CornerPolicy string            `mapstructure:"corner_policy" yaml:"corner_policy" json:"corner_policy"`
	Labels       map[string]string `mapstructure:"labels" yaml:"labels" json:"labels"`
	CornerIndex  map[string]int    `mapstructure:"corner_index" yaml:"corner_index" json:"corner_index"`
}

// CalibrationConfig locates the calibration record.
type CalibrationConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// OutputConfig names the artifacts written by each pass.
type OutputConfig struct {
	Dir          string `mapstructure:"dir" yaml:"dir" json:"dir"`
	FullFrame    string `mapstructure:"full_frame" yaml:"full_frame" json:"full_frame"`
	Reference    string `mapstructure:"reference" yaml:"reference" json:"reference"`
	Test         string `mapstructure:"test" yaml:"test" json:"test"`
	DiffMap      string `mapstructure:"diff_map" yaml:"diff_map" json:"diff_map"`
	Mask         string `mapstructure:"mask" yaml:"mask" json:"mask"`
	RGBStrip     string `mapstructure:"rgb_strip" yaml:"rgb_strip" json:"rgb_strip"`
	ChannelStrip string `mapstructure:"channel_strip" yaml:"channel_strip" json:"channel_strip"`
	Report       string `mapstructure:"report" yaml:"report" json:"report"`
	Format       string `mapstructure:"format" yaml:"format" json:"format"`
}

// CompareConfig tunes the difference engine.
type CompareConfig struct {
	Channel      string  `mapstructure:"channel" yaml:"channel" json:"channel"`
	Sigma        float64 `mapstructure:"sigma" yaml:"sigma" json:"sigma"`
	Threshold    float64 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	SmoothSigned bool    `mapstructure:"smooth_signed" yaml:"smooth_signed" json:"smooth_signed"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxConcurrent   int    `mapstructure:"max_concurrent" yaml:"max_concurrent" json:"max_concurrent"`
}

// BatchConfig contains batch inspection settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
