package config

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "boardcmp"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BOARDCMP"
)

// Loader resolves a Config from defaults, a config file, BOARDCMP_
// environment variables and any flags bound to its viper instance.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader over the global viper instance, which is the
// one cobra flags are bound to.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper creates a loader over an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	if v == nil {
		v = viper.New()
	}
	return &Loader{v: v}
}

// Load reads the first boardcmp config file found on the search paths and validates the result.
func (l *Loader) Load() (*Config, error) { return l.LoadWithFile("") }

// LoadWithoutValidation is Load without the Validate step.
func (l *Loader) LoadWithoutValidation() (*Config, error) {
	return l.LoadWithFileWithoutValidation("")
}

// LoadWithFile reads configFile, or searches for one when it is empty, and
// validates the result.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation is LoadWithFile without the Validate step.
// A missing file is an error only when it was named explicitly.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		for _, p := range GetConfigSearchPaths() {
			l.v.AddConfigPath(p)
		}
	}

	l.v.SetEnvPrefix(EnvPrefix)
	// BOARDCMP_COMPARE_SIGMA overrides compare.sigma
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case configFile != "":
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		case !errors.As(err, &notFound):
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Get returns a value from the configuration.
func (l *Loader) Get(key string) any { return l.v.Get(key) }

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string { return l.v.GetString(key) }

// Set overrides a value in the configuration.
func (l *Loader) Set(key string, value any) { l.v.Set(key, value) }

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string { return l.v.ConfigFileUsed() }

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper { return l.v }

// GetResolvedConfig returns every resolved setting, for debugging.
func (l *Loader) GetResolvedConfig() map[string]any { return l.v.AllSettings() }

// WriteConfigToFile writes the current configuration to a file.
func (l *Loader) WriteConfigToFile(filename string) error { return l.v.WriteConfigAs(filename) }

// setDefaults registers every key of DefaultConfig under its dotted path,
// so each one can also be overridden from the environment. Role maps expand
// to one key per role (fiducial.labels.top_left).
func (l *Loader) setDefaults() {
	defaults, err := DefaultSettings()
	if err != nil {
		// DefaultConfig is a plain struct literal; encoding it cannot fail.
		panic(fmt.Sprintf("config: encoding defaults: %v", err))
	}
	for key, value := range defaults {
		l.v.SetDefault(key, value)
	}
}

// DefaultSettings flattens DefaultConfig into dotted viper keys using the
// yaml field names.
func DefaultSettings() (map[string]any, error) {
	raw, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	out := make(map[string]any)
	flatten("", tree, out)
	return out, nil
}

func flatten(prefix string, node map[string]any, out map[string]any) {
	for _, k := range slices.Sorted(maps.Keys(node)) {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := node[k].(map[string]any); ok && len(child) > 0 {
			flatten(key, child, out)
			continue
		}
		out[key] = node[k]
	}
}

// GenerateDefaultConfigFile writes the defaults as YAML. An empty filename
// means boardcmp.yaml in the current directory.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	loader := NewLoaderWithViper(viper.New())
	loader.setDefaults()
	return loader.WriteConfigToFile(filename)
}

// GetConfigSearchPaths returns, in order: the working directory, $HOME,
// $XDG_CONFIG_HOME/boardcmp (or ~/.config/boardcmp) and /etc/boardcmp.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		paths = append(paths, home)
	}
	if configDir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(configDir, ConfigFileName))
	} else if homeErr == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	return append(paths, "/etc/"+ConfigFileName)
}

// PrintConfigInfo writes the config file used, the search paths and the env prefix to w.
func (l *Loader) PrintConfigInfo(w io.Writer) {
	used := l.GetConfigFileUsed()
	if used == "" {
		used = "(none)"
	}
	_, _ = fmt.Fprintf(w, "Configuration file used: %s\n", used)
	_, _ = fmt.Fprintf(w, "Configuration search paths: %v\n", GetConfigSearchPaths())
	_, _ = fmt.Fprintf(w, "Environment prefix: %s\n", EnvPrefix)
}
