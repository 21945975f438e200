package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/boardcmp/internal/config"
	"github.com/MeKo-Tech/boardcmp/internal/version"
)

const (
	outputFormatJSON = "json"
	outputFormatText = "text"
)

var (
	// Global configuration loader.
	configLoader *config.Loader
	// Global configuration.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "boardcmp",
	Short: "Fiducial-based board rectification and colour difference inspection",
	Long: `boardcmp photographs a board carrying four QR corner markers, rectifies it
onto a fixed-size canvas and compares it with a known-good reference in the
Cr (red-difference) channel to flag colour anomalies.

Workflow:
- calibrate: capture the reference board, record its size and save the reference image
- inspect:   capture a board under test, rectify it to the recorded size and compare
- compare:   compare two already rectified images
- serve:     expose the passes over HTTP and WebSocket

Examples:
  boardcmp calibrate
  boardcmp calibrate capture.png
  boardcmp inspect board_0042.png --report board_0042.pdf
  boardcmp inspect captures/ --batch --recursive --format json
  boardcmp compare img/imagem_referencia.png img/imagem_teste_retificada.png
  boardcmp serve --port 8080`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			ver, commit, date := version.Info()
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "boardcmp version %s\n", ver)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Commit: %s\n", commit)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Built: %s\n", date)
			return nil
		}
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is search in ., $HOME, $HOME/.config/boardcmp, /etc/boardcmp)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.StringP("format", "f", outputFormatText, "output format (text, json)")
	pf.String("output-dir", "img", "directory for image artifacts (empty disables them)")
	pf.String("calibration", "dimensoes_placa.json", "calibration record path (.json or .yaml)")
	pf.String("decoder", "gozxing", "marker decoder backend (gozxing, gocv)")
	pf.String("corner-policy", "table", "corner selection policy (table, interior)")
	pf.Int("camera-id", 1, "camera device index")
	pf.Int("max-frames", 0, "stop a capture after this many frames (0 = until the source ends)")
	rootCmd.Flags().Bool("version", false, "print version information and exit")

	bindFlags(rootCmd, true, []flagBinding{
		{"verbose", "verbose"},
		{"log_level", "log-level"},
		{"output.format", "format"},
		{"output.dir", "output-dir"},
		{"calibration.path", "calibration"},
		{"fiducial.decoder", "decoder"},
		{"fiducial.corner_policy", "corner-policy"},
		{"capture.camera_id", "camera-id"},
		{"capture.max_frames", "max-frames"},
	})

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var logLevel slog.Level
		if cfg.Verbose {
			logLevel = slog.LevelDebug
		} else {
			switch cfg.LogLevel {
			case "debug":
				logLevel = slog.LevelDebug
			case "warn":
				logLevel = slog.LevelWarn
			case "error":
				logLevel = slog.LevelError
			default:
				logLevel = slog.LevelInfo
			}
		}

		// Logs go to stderr so stdout carries only command results
		logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
			Level: logLevel,
		}))
		slog.SetDefault(logger)
		return nil
	}
}

// flagBinding ties a configuration key to a flag name.
type flagBinding struct {
	key  string
	flag string
}

func bindFlags(cmd *cobra.Command, persistent bool, bindings []flagBinding) {
	fs := cmd.Flags()
	if persistent {
		fs = cmd.PersistentFlags()
	}
	for _, b := range bindings {
		if err := viper.BindPFlag(b.key, fs.Lookup(b.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", b.flag, err))
		}
	}
}

// loadConfig reads the config file, environment and bound flags.
func loadConfig() (*config.Config, error) {
	configLoader = GetConfigLoader()

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}
	return globalConfig, nil
}

// GetConfig returns the configuration with command-line flags applied.
func GetConfig() (*config.Config, error) {
	if globalConfig == nil {
		if _, err := loadConfig(); err != nil {
			return nil, err
		}
	}

	// Flag binding happens after the initial load, so resolve again
	var cfg config.Config
	if err := GetConfigLoader().GetViper().Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// GetConfigLoader returns the global configuration loader.
func GetConfigLoader() *config.Loader {
	if configLoader == nil {
		configLoader = config.NewLoader()
	}
	return configLoader
}
