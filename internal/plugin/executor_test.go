package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// scriptPlugin writes a shell script plugin into a temp dir.
func scriptPlugin(t *testing.T, name, script string) *Plugin {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}

	tmpDir := t.TempDir()
	scriptPath := filepath.Join(tmpDir, name+".sh")
	if err := os.WriteFile(scriptPath, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	return &Plugin{
		Manifest: Manifest{
			Name:       name,
			Version:    "1.0.0",
			Executable: name + ".sh",
		},
		Path:       tmpDir,
		Executable: scriptPath,
	}
}

func TestExecutor_Execute(t *testing.T) {
	plugin := scriptPlugin(t, "ok-plugin", `#!/bin/sh
cat <<'EOF'
{"success":true,"data":{"message":"hello world"}}
EOF
`)

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{
		Action:    "open",
		Symbology: "qr",
		Payload:   "https://example.com",
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if !response.Success {
		t.Errorf("expected success=true, got false")
	}

	var data map[string]any
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}
	if data["message"] != "hello world" {
		t.Errorf("expected message 'hello world', got %v", data["message"])
	}
}

func TestExecutor_Execute_ReadsStdin(t *testing.T) {
	plugin := scriptPlugin(t, "echo-plugin", `#!/bin/sh
INPUT=$(cat)
echo "{\"success\":true,\"data\":{\"received\":$INPUT}}"
`)

	response, err := NewExecutor(5*time.Second).Execute(context.Background(), plugin, &Request{
		Action:    "type",
		Symbology: "ean13",
		Payload:   "4006381333931",
		Camera:    "back",
		Config:    json.RawMessage(`{"enter":true}`),
	})
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	var data struct {
		Received Request `json:"received"`
	}
	if err := json.Unmarshal(response.Data, &data); err != nil {
		t.Fatalf("failed to unmarshal response data: %v", err)
	}

	got := data.Received
	if got.Action != "type" || got.Symbology != "ean13" || got.Payload != "4006381333931" || got.Camera != "back" {
		t.Errorf("plugin received %+v", got)
	}
	if string(got.Config) != `{"enter":true}` {
		t.Errorf("plugin received config %s", got.Config)
	}
}

func TestExecutor_Failures(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		check   func(t *testing.T, resp *Response, err error)
	}{
		{
			name:    "timeout",
			script:  "#!/bin/sh\nsleep 10\necho '{\"success\":true}'\n",
			timeout: 100 * time.Millisecond,
			check: func(t *testing.T, resp *Response, err error) {
				if !errors.Is(err, ErrTimeout) {
					t.Errorf("error = %v, want ErrTimeout", err)
				}
			},
		},
		{
			name:   "error response",
			script: "#!/bin/sh\necho '{\"success\":false,\"error\":\"something went wrong\"}'\n",
			check: func(t *testing.T, resp *Response, err error) {
				if err != nil {
					t.Fatalf("Execute() failed: %v", err)
				}
				if resp.Success || resp.Error != "something went wrong" {
					t.Errorf("response = %+v", resp)
				}
			},
		},
		{
			name:   "invalid json",
			script: "#!/bin/sh\necho 'not valid json'\n",
			check: func(t *testing.T, resp *Response, err error) {
				if err == nil || !strings.Contains(err.Error(), "parse") {
					t.Errorf("error = %v, want parse failure", err)
				}
			},
		},
		{
			name:   "non-zero exit",
			script: "#!/bin/sh\necho 'Error: something failed' >&2\nexit 1\n",
			check: func(t *testing.T, resp *Response, err error) {
				if err == nil || !strings.Contains(err.Error(), "something failed") {
					t.Errorf("error = %v, want stderr in message", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plugin := scriptPlugin(t, "plugin", tt.script)
			resp, err := NewExecutor(tt.timeout).Execute(context.Background(), plugin, &Request{Action: "run"})
			tt.check(t, resp, err)
		})
	}
}

func TestExecutor_DefaultTimeout(t *testing.T) {
	if got := NewExecutor(0).Timeout(); got != DefaultTimeout {
		t.Errorf("Timeout() = %s, want %s", got, DefaultTimeout)
	}
}

func TestManifest_Supports(t *testing.T) {
	tests := []struct {
		actions []string
		action  string
		want    bool
	}{
		{nil, "anything", true},
		{[]string{"type", "paste"}, "type", true},
		{[]string{"type", "paste"}, "open", false},
	}
	for _, tt := range tests {
		m := Manifest{Actions: tt.actions}
		if got := m.Supports(tt.action); got != tt.want {
			t.Errorf("Supports(%q) with %v = %v, want %v", tt.action, tt.actions, got, tt.want)
		}
	}
}
