// Package main provides a plugin that opens links from scanned QR codes in
// the default browser or copies the payload to the clipboard.
package main

import (
	"encoding/json"
	"fmt"
	"net/url"
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

// OpenConfig is the per-binding configuration of the open action.
type OpenConfig struct {
	// Schemes lists the URL schemes that may be opened.
	Schemes []string `json:"schemes"`
}

// defaultSchemes are opened when a binding does not list any.
var defaultSchemes = []string{"http", "https"}

// actionHandler defines a function type for handling specific actions.
type actionHandler func(req Request) (json.RawMessage, error)

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"open": openURL,
	"copy": copyPayload,
}

func main() {
	// Read request from stdin
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	// Look up the handler for the action
	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	data, err := handler(req)
	if err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse(data)
}

// openURL opens the payload if it is a URL with an allowed scheme.
func openURL(req Request) (json.RawMessage, error) {
	var cfg OpenConfig
	if len(req.Config) > 0 && string(req.Config) != "null" {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	u, err := parseLink(req.Payload, cfg.Schemes)
	if err != nil {
		return nil, err
	}

	name, args := openCommand(runtime.GOOS, u.String())
	if err := run(name, args...); err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{"url": u.String()})
}

// parseLink validates payload as an absolute URL whose scheme is allowed.
func parseLink(payload string, schemes []string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(payload))
	if err != nil {
		return nil, fmt.Errorf("payload is not a URL: %w", err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("payload %q has no scheme", payload)
	}
	if len(schemes) == 0 {
		schemes = defaultSchemes
	}
	for _, s := range schemes {
		if strings.EqualFold(s, u.Scheme) {
			if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
				return nil, fmt.Errorf("payload %q has no host", payload)
			}
			return u, nil
		}
	}
	return nil, fmt.Errorf("scheme %q is not allowed", u.Scheme)
}

// openCommand returns the platform command that opens target.
func openCommand(goos, target string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", target}
	default:
		return "xdg-open", []string{target}
	}
}

// copyPayload places the payload on the clipboard.
func copyPayload(req Request) (json.RawMessage, error) {
	name, args := clipboardCommand(runtime.GOOS)
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(req.Payload)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%w: %s", err, string(output))
	}
	return nil, nil
}

// clipboardCommand returns the platform command that reads the clipboard
// contents from stdin.
func clipboardCommand(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "pbcopy", nil
	case "windows":
		return "clip", nil
	default:
		return "xclip", []string{"-selection", "clipboard"}
	}
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
func writeSuccessResponse(data json.RawMessage) {
	resp := Response{
		Success: true,
		Data:    data,
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
