package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gocv.io/x/gocv"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/config"
	"github.com/ayusman/codescan/internal/permission"
	"github.com/ayusman/codescan/internal/store"
)

const testConfig = `
data_dir: %s
server:
  addr: 127.0.0.1:9999
scanner:
  camera: front
devices:
  - id: usb0
    index: 0
    position: back
    primary: true
    torch: [on]
  - id: usb1
    index: 1
    position: front
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "codescan.yaml")
	content := strings.Replace(testConfig, "%s", filepath.Join(dir, "data"), 1)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root := GetRootCommand()
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range GetRootCommand().Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "tray", "devices", "config"} {
		if !names[want] {
			t.Errorf("missing subcommand %q", want)
		}
	}
}

func TestConfigCommand(t *testing.T) {
	out, err := execute(t, "config", "--config", writeTestConfig(t))
	if err != nil {
		t.Fatalf("config failed: %v\n%s", err, out)
	}

	for _, want := range []string{"addr: 127.0.0.1:9999", "camera: front", "id: usb1", "repeat_interval: 2s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDevicesCommand_JSON(t *testing.T) {
	out, err := execute(t, "devices", "--json", "--config", writeTestConfig(t))
	if err != nil {
		t.Fatalf("devices failed: %v\n%s", err, out)
	}

	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d devices, want 2", len(rows))
	}
	if rows[0]["id"] != "usb0" || rows[0]["position"] != "back" || rows[0]["selected"] != true {
		t.Errorf("rows[0] = %v", rows[0])
	}
	if rows[1]["position"] != "front" || rows[1]["selected"] != true {
		t.Errorf("rows[1] = %v", rows[1])
	}
}

func TestListDevices_Probe(t *testing.T) {
	frame := gocv.NewMat()
	defer frame.Close()

	source := capture.NewMockSource([]*gocv.Mat{&frame},
		capture.DeviceInfo{ID: "wide", Position: capture.PositionBack, Primary: true},
		capture.DeviceInfo{ID: "tele", Position: capture.PositionBack},
	)
	source.Camera("tele").FailOpen(capture.ErrUnsupported)

	rows, err := listDevices(source, true)
	if err != nil {
		t.Fatalf("listDevices() error = %v", err)
	}
	if !rows[0].Selected || rows[1].Selected {
		t.Errorf("only the primary back camera should be selected: %+v", rows)
	}
	if rows[0].Status != "ok" || rows[1].Status == "ok" {
		t.Errorf("statuses = %q, %q", rows[0].Status, rows[1].Status)
	}

	var buf bytes.Buffer
	if err := printDevices(&buf, rows); err != nil {
		t.Fatalf("printDevices() error = %v", err)
	}
	if !strings.Contains(buf.String(), "STATUS") || !strings.Contains(buf.String(), "wide") {
		t.Errorf("table output:\n%s", buf.String())
	}
}

func TestSettingsURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{":8080", "http://localhost:8080/"},
		{"127.0.0.1:9090", "http://127.0.0.1:9090/"},
	}
	for _, tt := range tests {
		if got := settingsURL(tt.addr); got != tt.want {
			t.Errorf("settingsURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestTerminalPrompt(t *testing.T) {
	tests := []struct {
		input   string
		want    bool
		wantErr bool
	}{
		{"y\n", true, false},
		{"YES\n", true, false},
		{"n\n", false, false},
		{"\n", false, false},
		{"", false, true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got, err := terminalPrompt(strings.NewReader(tt.input), &out)(context.Background())
		if (err != nil) != tt.wantErr {
			t.Errorf("input %q: error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("input %q: granted = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "[y/N]") {
			t.Errorf("prompt not written: %q", out.String())
		}
	}
}

func TestAuthorizerFor(t *testing.T) {
	tests := []struct {
		mode string
		want permission.Status
	}{
		{config.PermissionGranted, permission.Authorized},
		{config.PermissionDenied, permission.Denied},
		{config.PermissionPrompt, permission.NotDetermined},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Scanner.Permission = tt.mode
			st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
			if err != nil {
				t.Fatalf("store.New() error = %v", err)
			}
			defer st.Close()

			if got := authorizerFor(&cfg, st, strings.NewReader(""), &bytes.Buffer{}).Status(); got != tt.want {
				t.Errorf("status = %s, want %s", got, tt.want)
			}
		})
	}
}
