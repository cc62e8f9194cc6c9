// Package main provides a keyboard plugin that types scanned codes into the
// focused application, like a hardware barcode wedge.
// It uses AppleScript on macOS and xdotool on Linux.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Symbology string          `json:"symbology"`
	Payload   string          `json:"payload"`
	Camera    string          `json:"camera"`
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// TypeConfig is the per-binding configuration of the type action.
type TypeConfig struct {
	// Prefix and Suffix wrap the payload.
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
	// Enter presses Return after typing.
	Enter bool `json:"enter"`
	// Tab presses Tab after typing, e.g. to move to the next form field.
	Tab bool `json:"tab"`
}

func main() {
	// Read request from stdin
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	switch req.Action {
	case "type":
		if err := handleType(req); err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	writeSuccessResponse()
}

// handleType types the payload with the configured decoration.
func handleType(req Request) error {
	cfg, err := parseConfig(req.Config)
	if err != nil {
		return err
	}

	text := cfg.Prefix + req.Payload + cfg.Suffix
	if text == "" {
		return fmt.Errorf("payload is empty")
	}

	switch runtime.GOOS {
	case "darwin":
		return run("osascript", "-e", buildTypeScript(text, cfg))
	case "linux":
		for _, args := range xdotoolArgs(text, cfg) {
			if err := run("xdotool", args...); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("typing is not supported on %s", runtime.GOOS)
	}
}

func parseConfig(raw json.RawMessage) (TypeConfig, error) {
	var cfg TypeConfig
	if len(raw) == 0 || string(raw) == "null" {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// buildTypeScript generates an AppleScript that types text.
// Key code 36 is Return and 48 is Tab.
func buildTypeScript(text string, cfg TypeConfig) string {
	lines := []string{
		`tell application "System Events"`,
		fmt.Sprintf(`keystroke "%s"`, escapeAppleScript(text)),
	}
	if cfg.Tab {
		lines = append(lines, "key code 48")
	}
	if cfg.Enter {
		lines = append(lines, "key code 36")
	}
	lines = append(lines, "end tell")
	return strings.Join(lines, "\n")
}

// escapeAppleScript quotes backslashes and double quotes for a string
// literal.
func escapeAppleScript(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// xdotoolArgs returns the xdotool invocations that type text.
func xdotoolArgs(text string, cfg TypeConfig) [][]string {
	calls := [][]string{{"type", "--clearmodifiers", "--", text}}
	if cfg.Tab {
		calls = append(calls, []string{"key", "Tab"})
	}
	if cfg.Enter {
		calls = append(calls, []string{"key", "Return"})
	}
	return calls
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// run executes a command and returns any error with its output.
func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}
