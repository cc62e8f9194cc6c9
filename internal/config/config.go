// Package config loads codescan settings from files, the environment and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/focus"
)

// Permission modes.
const (
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
	PermissionPrompt  = "prompt"
)

// DBFileName is the sqlite database file inside the data directory.
const DBFileName = "codescan.db"

// Config is the complete configuration of the codescan host.
type Config struct {
	DataDir   string `mapstructure:"data_dir" yaml:"data_dir" json:"data_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`

	Server  ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Scanner ScannerConfig  `mapstructure:"scanner" yaml:"scanner" json:"scanner"`
	Devices []DeviceConfig `mapstructure:"devices" yaml:"devices,omitempty" json:"devices,omitempty"`
	Plugins PluginConfig   `mapstructure:"plugins" yaml:"plugins" json:"plugins"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr" json:"addr"`
	StaticDir string `mapstructure:"static_dir" yaml:"static_dir" json:"static_dir"`
	StreamFPS int    `mapstructure:"stream_fps" yaml:"stream_fps" json:"stream_fps"`
	Metrics   bool   `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// ScannerConfig contains capture and recognition settings.
type ScannerConfig struct {
	Camera          string        `mapstructure:"camera" yaml:"camera" json:"camera"`
	FPS             int           `mapstructure:"fps" yaml:"fps" json:"fps"`
	Width           int           `mapstructure:"width" yaml:"width" json:"width"`
	Height          int           `mapstructure:"height" yaml:"height" json:"height"`
	Symbologies     []string      `mapstructure:"symbologies" yaml:"symbologies,omitempty" json:"symbologies,omitempty"`
	FillMode        string        `mapstructure:"fill_mode" yaml:"fill_mode" json:"fill_mode"`
	TryHarder       bool          `mapstructure:"try_harder" yaml:"try_harder" json:"try_harder"`
	AllowTapToFocus bool          `mapstructure:"allow_tap_to_focus" yaml:"allow_tap_to_focus" json:"allow_tap_to_focus"`
	RepeatInterval  time.Duration `mapstructure:"repeat_interval" yaml:"repeat_interval" json:"repeat_interval"`
	Permission      string        `mapstructure:"permission" yaml:"permission" json:"permission"`
	PreviewWidth    float64       `mapstructure:"preview_width" yaml:"preview_width" json:"preview_width"`
	PreviewHeight   float64       `mapstructure:"preview_height" yaml:"preview_height" json:"preview_height"`
}

// DeviceConfig describes one OpenCV capture device.
type DeviceConfig struct {
	ID            string   `mapstructure:"id" yaml:"id" json:"id"`
	Name          string   `mapstructure:"name" yaml:"name,omitempty" json:"name,omitempty"`
	Index         int      `mapstructure:"index" yaml:"index" json:"index"`
	Position      string   `mapstructure:"position" yaml:"position" json:"position"`
	Primary       bool     `mapstructure:"primary" yaml:"primary" json:"primary"`
	Torch         []string `mapstructure:"torch" yaml:"torch,omitempty" json:"torch,omitempty"`
	FocusPoint    bool     `mapstructure:"focus_point" yaml:"focus_point" json:"focus_point"`
	ExposurePoint bool     `mapstructure:"exposure_point" yaml:"exposure_point" json:"exposure_point"`
	AutoFocus     bool     `mapstructure:"auto_focus" yaml:"auto_focus" json:"auto_focus"`
}

// PluginConfig contains plugin discovery and execution settings.
type PluginConfig struct {
	Dir     string        `mapstructure:"dir" yaml:"dir" json:"dir"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// DefaultDataDir returns ~/.codescan, or .codescan if the home directory is
// unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".codescan"
	}
	return filepath.Join(home, ".codescan")
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		DataDir:   DefaultDataDir(),
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Addr:      ":8080",
			StreamFPS: 15,
			Metrics:   true,
		},
		Scanner: ScannerConfig{
			Camera:          capture.PositionBack.String(),
			FPS:             capture.DefaultFPS,
			Width:           capture.DefaultWidth,
			Height:          capture.DefaultHeight,
			FillMode:        focus.AspectFill.String(),
			AllowTapToFocus: true,
			RepeatInterval:  2 * time.Second,
			Permission:      PermissionGranted,
			PreviewWidth:    capture.DefaultWidth,
			PreviewHeight:   capture.DefaultHeight,
		},
		Plugins: PluginConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Validate checks every enumerated and numeric setting.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if _, err := capture.ParsePosition(c.Scanner.Camera); err != nil {
		errs = append(errs, fmt.Errorf("scanner.camera: %w", err))
	}
	if c.Scanner.FPS <= 0 {
		errs = append(errs, fmt.Errorf("scanner.fps must be positive, got %d", c.Scanner.FPS))
	}
	if c.Scanner.Width <= 0 || c.Scanner.Height <= 0 {
		errs = append(errs, fmt.Errorf("scanner resolution must be positive, got %dx%d", c.Scanner.Width, c.Scanner.Height))
	}
	if c.Scanner.PreviewWidth <= 0 || c.Scanner.PreviewHeight <= 0 {
		errs = append(errs, fmt.Errorf("scanner preview size must be positive, got %gx%g", c.Scanner.PreviewWidth, c.Scanner.PreviewHeight))
	}
	if _, err := decoder.ParseSymbologies(c.Scanner.Symbologies); err != nil {
		errs = append(errs, fmt.Errorf("scanner.symbologies: %w", err))
	}
	if _, ok := focus.ParseFillMode(c.Scanner.FillMode); !ok {
		errs = append(errs, fmt.Errorf("scanner.fill_mode: unknown mode %q", c.Scanner.FillMode))
	}
	if c.Scanner.RepeatInterval < 0 {
		errs = append(errs, errors.New("scanner.repeat_interval must not be negative"))
	}
	switch c.Scanner.Permission {
	case PermissionGranted, PermissionDenied, PermissionPrompt:
	default:
		errs = append(errs, fmt.Errorf("scanner.permission must be %s, %s or %s, got %q",
			PermissionGranted, PermissionDenied, PermissionPrompt, c.Scanner.Permission))
	}
	if c.Plugins.Timeout <= 0 {
		errs = append(errs, errors.New("plugins.timeout must be positive"))
	}
	if _, err := c.CaptureDevices(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// DBPath returns the sqlite database path.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFileName)
}

// PluginDir returns the plugin directory, defaulting to <data_dir>/plugins.
func (c *Config) PluginDir() string {
	if c.Plugins.Dir != "" {
		return c.Plugins.Dir
	}
	return filepath.Join(c.DataDir, "plugins")
}

// CameraPosition returns the preferred camera.
func (c *Config) CameraPosition() capture.Position {
	pos, err := capture.ParsePosition(c.Scanner.Camera)
	if err != nil {
		return capture.PositionBack
	}
	return pos
}

// SymbologyFilter returns the configured symbologies; nil means all.
func (c *Config) SymbologyFilter() []decoder.Symbology {
	syms, err := decoder.ParseSymbologies(c.Scanner.Symbologies)
	if err != nil {
		return nil
	}
	return syms
}

// Fill returns the configured preview fill mode.
func (c *Config) Fill() focus.FillMode {
	mode, _ := focus.ParseFillMode(c.Scanner.FillMode)
	return mode
}

// CaptureDevices converts the device list. An empty list lets the capture
// source fall back to the default camera.
func (c *Config) CaptureDevices() ([]capture.DeviceInfo, error) {
	out := make([]capture.DeviceInfo, 0, len(c.Devices))
	seen := make(map[string]bool)
	for i, d := range c.Devices {
		if d.ID == "" {
			return nil, fmt.Errorf("devices[%d]: id is required", i)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("devices[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true

		pos, err := capture.ParsePosition(d.Position)
		if err != nil {
			return nil, fmt.Errorf("devices[%d]: %w", i, err)
		}

		info := capture.DeviceInfo{
			ID:                      d.ID,
			Name:                    d.Name,
			Index:                   d.Index,
			Position:                pos,
			Primary:                 d.Primary,
			FocusPointOfInterest:    d.FocusPoint,
			ExposurePointOfInterest: d.ExposurePoint,
			AutoFocus:               d.AutoFocus,
		}
		for _, name := range d.Torch {
			mode, err := capture.ParseTorchMode(strings.TrimSpace(name))
			if err != nil {
				return nil, fmt.Errorf("devices[%d]: %w", i, err)
			}
			if mode != capture.TorchOff {
				info.TorchModes = append(info.TorchModes, mode)
			}
		}
		if info.Name == "" {
			info.Name = fmt.Sprintf("Camera %d", d.Index)
		}
		out = append(out, info)
	}
	return out, nil
}
