package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "boardcmp.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if loader.v == nil {
		t.Error("Loader viper instance is nil")
	}
	if NewLoaderWithViper(nil).v == nil {
		t.Error("NewLoaderWithViper(nil) has no viper instance")
	}
}

func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := NewLoaderWithViper(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Compare.Sigma != 5 {
		t.Errorf("Expected default sigma 5, got %v", cfg.Compare.Sigma)
	}
	if cfg.Fiducial.CornerIndex["top_left"] != 3 {
		t.Errorf("Expected default top_left index 3, got %d", cfg.Fiducial.CornerIndex["top_left"])
	}
}

func TestLoadFromSearchPath(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "compare:\n  threshold: 9\n")
	t.Chdir(dir)

	loader := NewLoaderWithViper(viper.New())
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.Compare.Threshold != 9 {
		t.Errorf("Expected threshold 9, got %v", cfg.Compare.Threshold)
	}
	if !strings.HasSuffix(loader.GetConfigFileUsed(), "boardcmp.yaml") {
		t.Errorf("Unexpected config file used: %s", loader.GetConfigFileUsed())
	}
}

func TestLoadWithValidYAMLFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
log_level: debug
capture:
  source: files
  max_frames: 12
fiducial:
  corner_policy: interior
  labels:
    top_left: ALPHA
  corner_index:
    bottom_left: 2
calibration:
  path: /tmp/board.yaml
compare:
  channel: cb
  sigma: 3.5
  smooth_signed: true
batch:
  workers: 2
`)

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Capture.Source != "files" || cfg.Capture.MaxFrames != 12 {
		t.Errorf("Unexpected capture section: %+v", cfg.Capture)
	}
	if cfg.Fiducial.Labels["top_left"] != "ALPHA" {
		t.Errorf("Expected top_left label ALPHA, got %q", cfg.Fiducial.Labels["top_left"])
	}
	if cfg.Fiducial.Labels["bottom_right"] == "" {
		t.Error("Expected default bottom_right label to survive a partial override")
	}
	if cfg.Fiducial.CornerIndex["bottom_left"] != 2 || cfg.Fiducial.CornerIndex["top_right"] != 2 {
		t.Errorf("Unexpected corner index: %v", cfg.Fiducial.CornerIndex)
	}
	if cfg.Calibration.Path != "/tmp/board.yaml" {
		t.Errorf("Unexpected calibration path: %s", cfg.Calibration.Path)
	}
	if cfg.Compare.Channel != "cb" || cfg.Compare.Sigma != 3.5 || !cfg.Compare.SmoothSigned {
		t.Errorf("Unexpected compare section: %+v", cfg.Compare)
	}
	if cfg.Compare.Threshold != 4 {
		t.Errorf("Expected default threshold 4, got %v", cfg.Compare.Threshold)
	}
	if cfg.Batch.Workers != 2 {
		t.Errorf("Expected 2 workers, got %d", cfg.Batch.Workers)
	}
}

func TestLoadWithInvalidYAMLFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "compare: [unclosed\n")
	if _, err := NewLoaderWithViper(viper.New()).LoadWithFile(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
}

func TestLoadWithNonExistentFile(t *testing.T) {
	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Expected missing file error, got %v", err)
	}
}

func TestLoadWithValidationFailure(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "compare:\n  sigma: -1\n")

	_, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "configuration validation failed") {
		t.Errorf("Expected validation error, got %v", err)
	}

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if cfg.Compare.Sigma != -1 {
		t.Errorf("Expected sigma -1 to load unvalidated, got %v", cfg.Compare.Sigma)
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "compare:\n  sigma: 3\n")
	t.Setenv("BOARDCMP_COMPARE_SIGMA", "2.5")
	t.Setenv("BOARDCMP_SERVER_PORT", "9090")
	t.Setenv("BOARDCMP_FIDUCIAL_LABELS_TOP_LEFT", "FROM_ENV")

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.Compare.Sigma != 2.5 {
		t.Errorf("Expected env sigma 2.5 to beat the file, got %v", cfg.Compare.Sigma)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected env port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Fiducial.Labels["top_left"] != "FROM_ENV" {
		t.Errorf("Expected env label, got %q", cfg.Fiducial.Labels["top_left"])
	}
}

func TestGetSetConfigValues(t *testing.T) {
	loader := NewLoaderWithViper(viper.New())
	loader.Set("compare.channel", "y")
	if got := loader.GetString("compare.channel"); got != "y" {
		t.Errorf("GetString() = %s, want y", got)
	}
	if loader.Get("compare.channel") != "y" {
		t.Error("Get() did not return the set value")
	}
	if loader.GetViper() == nil {
		t.Error("GetViper() returned nil")
	}
}

func TestGetResolvedConfig(t *testing.T) {
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()
	settings := loader.GetResolvedConfig()
	for _, key := range []string{"capture", "fiducial", "compare", "server", "batch"} {
		if _, ok := settings[key]; !ok {
			t.Errorf("Resolved config is missing %q", key)
		}
	}
}

func TestGenerateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "generated.yaml")
	if err := GenerateDefaultConfigFile(path); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	cfg, err := NewLoaderWithViper(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("Generated file does not load: %v", err)
	}
	if cfg.Calibration.Path != DefaultConfig().Calibration.Path {
		t.Errorf("Unexpected calibration path %s", cfg.Calibration.Path)
	}
}

func TestGenerateDefaultConfigFileWithEmptyFilename(t *testing.T) {
	t.Chdir(t.TempDir())
	if err := GenerateDefaultConfigFile(""); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}
	if _, err := os.Stat("boardcmp.yaml"); err != nil {
		t.Errorf("Expected boardcmp.yaml to be created: %v", err)
	}
}

func TestGetConfigSearchPaths(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("Expected current directory first, got %s", paths[0])
	}
	if paths[len(paths)-1] != "/etc/boardcmp" {
		t.Errorf("Expected /etc/boardcmp last, got %s", paths[len(paths)-1])
	}
	found := false
	for _, p := range paths {
		if p == filepath.Join(xdg, "boardcmp") {
			found = true
		}
	}
	if !found {
		t.Errorf("XDG path missing from %v", paths)
	}
}

func TestDefaultSettings(t *testing.T) {
	settings, err := DefaultSettings()
	if err != nil {
		t.Fatalf("DefaultSettings() error: %v", err)
	}
	want := map[string]any{
		"compare.channel":                 "cr",
		"calibration.path":                "dimensoes_placa.json",
		"fiducial.labels.top_left":        "canto_esquerdo_sup",
		"fiducial.corner_index.top_right": 2,
	}
	for key, value := range want {
		if got, ok := settings[key]; !ok || got != value {
			t.Errorf("settings[%q] = %v (present %v), want %v", key, got, ok, value)
		}
	}
	if _, ok := settings["fiducial.labels"]; ok {
		t.Error("role maps should expand to one key per role")
	}
}
