package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "codescan"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CODESCAN"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader on the global viper instance so cobra flag
// bindings apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWith creates a loader on v.
func NewLoaderWith(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load reads the configuration from the search paths, the environment and
// the defaults, then validates it.
func (l *Loader) Load() (*Config, error) {
	l.v.SetConfigName(ConfigFileName)
	l.v.SetConfigType("yaml")
	for _, p := range SearchPaths() {
		l.v.AddConfigPath(p)
	}
	return l.read(false)
}

// LoadWithFile loads configuration from a specific file path. An empty
// path falls back to Load.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	if configFile == "" {
		return l.Load()
	}
	if _, err := os.Stat(configFile); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configFile, err)
	}
	l.v.SetConfigFile(configFile)
	return l.read(true)
}

func (l *Loader) read(required bool) (*Config, error) {
	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if required || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// ConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Viper returns the underlying viper instance.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// setupEnvironmentVariables maps scanner.fps to CODESCAN_SCANNER_FPS.
func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("data_dir", d.DataDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("log_format", d.LogFormat)

	l.v.SetDefault("server.addr", d.Server.Addr)
	l.v.SetDefault("server.static_dir", d.Server.StaticDir)
	l.v.SetDefault("server.stream_fps", d.Server.StreamFPS)
	l.v.SetDefault("server.metrics", d.Server.Metrics)

	l.v.SetDefault("scanner.camera", d.Scanner.Camera)
	l.v.SetDefault("scanner.fps", d.Scanner.FPS)
	l.v.SetDefault("scanner.width", d.Scanner.Width)
	l.v.SetDefault("scanner.height", d.Scanner.Height)
	l.v.SetDefault("scanner.symbologies", d.Scanner.Symbologies)
	l.v.SetDefault("scanner.fill_mode", d.Scanner.FillMode)
	l.v.SetDefault("scanner.try_harder", d.Scanner.TryHarder)
	l.v.SetDefault("scanner.allow_tap_to_focus", d.Scanner.AllowTapToFocus)
	l.v.SetDefault("scanner.repeat_interval", d.Scanner.RepeatInterval)
	l.v.SetDefault("scanner.permission", d.Scanner.Permission)
	l.v.SetDefault("scanner.preview_width", d.Scanner.PreviewWidth)
	l.v.SetDefault("scanner.preview_height", d.Scanner.PreviewHeight)

	l.v.SetDefault("plugins.dir", d.Plugins.Dir)
	l.v.SetDefault("plugins.timeout", d.Plugins.Timeout)
}

// SearchPaths returns the directories searched for codescan.yaml.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".codescan"))
	}
	return append(paths, "/etc/codescan")
}
