package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/focus"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codescan.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := NewLoaderWith(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Addr != ":8080" {
		t.Errorf("server.addr = %q, want :8080", cfg.Server.Addr)
	}
	if cfg.Scanner.FPS != capture.DefaultFPS {
		t.Errorf("scanner.fps = %d, want %d", cfg.Scanner.FPS, capture.DefaultFPS)
	}
	if cfg.Scanner.RepeatInterval != 2*time.Second {
		t.Errorf("scanner.repeat_interval = %s, want 2s", cfg.Scanner.RepeatInterval)
	}
	if !cfg.Scanner.AllowTapToFocus {
		t.Error("tap to focus should default to enabled")
	}
	if cfg.CameraPosition() != capture.PositionBack {
		t.Errorf("camera = %s, want back", cfg.CameraPosition())
	}
	if cfg.SymbologyFilter() != nil {
		t.Errorf("symbologies = %v, want all", cfg.SymbologyFilter())
	}
	if cfg.PluginDir() != filepath.Join(cfg.DataDir, "plugins") {
		t.Errorf("plugin dir = %q", cfg.PluginDir())
	}
}

func TestLoadWithFile(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/codescan
log_level: debug
server:
  addr: 127.0.0.1:9090
  metrics: false
scanner:
  camera: front
  fps: 30
  symbologies: [qr, EAN13]
  fill_mode: aspect-fit
  repeat_interval: 500ms
  permission: prompt
devices:
  - id: usb0
    index: 0
    position: back
    primary: true
    torch: [on, auto]
    auto_focus: true
  - id: usb1
    index: 1
    position: front
plugins:
  dir: /opt/codescan/plugins
  timeout: 3s
`)

	cfg, err := NewLoaderWith(viper.New()).LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}

	if cfg.DBPath() != "/var/lib/codescan/codescan.db" {
		t.Errorf("db path = %q", cfg.DBPath())
	}
	if cfg.Server.Addr != "127.0.0.1:9090" || cfg.Server.Metrics {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.CameraPosition() != capture.PositionFront || cfg.Scanner.FPS != 30 {
		t.Errorf("scanner = %+v", cfg.Scanner)
	}
	if syms := cfg.SymbologyFilter(); len(syms) != 2 || syms[1] != decoder.EAN13 {
		t.Errorf("symbologies = %v", syms)
	}
	if cfg.Fill() != focus.AspectFit {
		t.Errorf("fill mode = %s", cfg.Fill())
	}
	if cfg.Scanner.RepeatInterval != 500*time.Millisecond || cfg.Plugins.Timeout != 3*time.Second {
		t.Errorf("durations = %s, %s", cfg.Scanner.RepeatInterval, cfg.Plugins.Timeout)
	}
	if cfg.PluginDir() != "/opt/codescan/plugins" {
		t.Errorf("plugin dir = %q", cfg.PluginDir())
	}

	devices, err := cfg.CaptureDevices()
	if err != nil {
		t.Fatalf("CaptureDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(devices))
	}
	if !devices[0].SupportsTorchMode(capture.TorchAuto) || !devices[0].AutoFocus {
		t.Errorf("devices[0] = %+v", devices[0])
	}
	if devices[1].Position != capture.PositionFront || devices[1].HasTorch() || devices[1].Name != "Camera 1" {
		t.Errorf("devices[1] = %+v", devices[1])
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CODESCAN_SCANNER_FPS", "24")
	t.Setenv("CODESCAN_SERVER_ADDR", ":7000")

	cfg, err := NewLoaderWith(viper.New()).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scanner.FPS != 24 {
		t.Errorf("scanner.fps = %d, want 24", cfg.Scanner.FPS)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("server.addr = %q, want :7000", cfg.Server.Addr)
	}
}

func TestLoadWithFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad camera", "scanner:\n  camera: sideways\n", "scanner.camera"},
		{"bad symbology", "scanner:\n  symbologies: [morse]\n", "scanner.symbologies"},
		{"bad fill mode", "scanner:\n  fill_mode: zoom\n", "scanner.fill_mode"},
		{"bad permission", "scanner:\n  permission: maybe\n", "scanner.permission"},
		{"zero fps", "scanner:\n  fps: 0\n", "scanner.fps"},
		{"device without id", "devices:\n  - index: 0\n", "id is required"},
		{"duplicate device", "devices:\n  - id: a\n  - id: a\n", "duplicate id"},
		{"bad torch", "devices:\n  - id: a\n    torch: [strobe]\n", "torch mode"},
		{"invalid yaml", "scanner: [", "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoaderWith(viper.New()).LoadWithFile(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}

	if _, err := NewLoaderWith(viper.New()).LoadWithFile("/nonexistent/codescan.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSearchPaths(t *testing.T) {
	paths := SearchPaths()
	if paths[0] != "." || paths[len(paths)-1] != "/etc/codescan" {
		t.Errorf("SearchPaths() = %v", paths)
	}
}
