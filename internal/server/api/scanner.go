package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/focus"
	"github.com/ayusman/codescan/internal/permission"
	"github.com/ayusman/codescan/internal/scanner"
)

// DefaultWaitTimeout bounds requests that wait for an asynchronous answer
// from the scanner (stills and permission prompts).
const DefaultWaitTimeout = 10 * time.Second

// Session is the host side of the scanner the API drives.
type Session interface {
	Scanner() *scanner.Controller
	StartWith(pos capture.Position) error
	Stop()
}

// ScannerHandler exposes the session controller over HTTP.
type ScannerHandler struct {
	session Session
	timeout time.Duration
}

// NewScannerHandler creates a ScannerHandler.
func NewScannerHandler(s Session) *ScannerHandler {
	return &ScannerHandler{session: s, timeout: DefaultWaitTimeout}
}

// SetTimeout changes how long still and permission requests wait.
func (h *ScannerHandler) SetTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

// ServeHTTP routes GET /api/scanner and POST /api/scanner/{op}.
func (h *ScannerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.URL.Path, "/api/scanner")
	op = strings.Trim(op, "/")

	if op == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.status())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch op {
	case "start":
		h.start(w, r)
	case "stop":
		h.session.Stop()
		writeJSON(w, http.StatusAccepted, h.status())
	case "flip":
		h.respond(w, h.session.Scanner().FlipCamera())
	case "camera":
		h.setCamera(w, r)
	case "torch":
		h.setTorch(w, r)
	case "torch/toggle":
		h.session.Scanner().ToggleTorch()
		writeJSON(w, http.StatusAccepted, h.status())
	case "region":
		h.setRegion(w, r)
	case "focus":
		h.setFocus(w, r)
	case "freeze":
		h.respond(w, h.session.Scanner().FreezeCapture())
	case "unfreeze":
		h.respond(w, h.session.Scanner().UnfreezeCapture())
	case "still":
		h.still(w, r)
	case "permission":
		h.permission(w, r)
	default:
		writeError(w, http.StatusNotFound, "Unknown scanner operation")
	}
}

type statusResponse struct {
	State           scanner.State        `json:"state"`
	Scanning        bool                 `json:"scanning"`
	Camera          capture.Position     `json:"camera"`
	Device          *capture.DeviceInfo  `json:"device,omitempty"`
	Torch           capture.TorchMode    `json:"torch"`
	Region          focus.Rect           `json:"region"`
	AllowTapToFocus bool                 `json:"allow_tap_to_focus"`
	Symbologies     []decoder.Symbology  `json:"symbologies,omitempty"`
	Permission      permission.Status    `json:"permission"`
	Capabilities    scanner.Capabilities `json:"capabilities"`
}

func (h *ScannerHandler) status() statusResponse {
	c := h.session.Scanner()
	resp := statusResponse{
		State:           c.State(),
		Scanning:        c.IsScanning(),
		Camera:          c.Camera(),
		Torch:           c.TorchMode(),
		Region:          c.ScanRegion(),
		AllowTapToFocus: c.AllowTapToFocus(),
		Symbologies:     c.Symbologies(),
		Permission:      c.PermissionStatus(),
		Capabilities:    c.Capabilities(),
	}
	if info, ok := c.ActiveDevice(); ok {
		resp.Device = &info
	}
	return resp
}

// respond writes the status for a successful operation or maps err.
func (h *ScannerHandler) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, h.status())
}

// statusFor maps scanner errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, scanner.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, scanner.ErrDeviceNotAvailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, scanner.ErrAlreadyStarted),
		errors.Is(err, scanner.ErrInvalidState),
		errors.Is(err, scanner.ErrCaptureInProgress):
		return http.StatusConflict
	case errors.Is(err, scanner.ErrTorchUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, scanner.ErrInvalidScanRegion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

type cameraRequest struct {
	Camera string `json:"camera"`
}

func (h *ScannerHandler) start(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	pos := h.session.Scanner().Camera()
	if req.Camera != "" {
		p, err := capture.ParsePosition(req.Camera)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pos = p
	}

	h.respond(w, h.session.StartWith(pos))
}

func (h *ScannerHandler) setCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	pos, err := capture.ParsePosition(req.Camera)
	if err != nil || req.Camera == "" {
		writeError(w, http.StatusBadRequest, "camera must be back or front")
		return
	}
	h.respond(w, h.session.Scanner().SetCamera(pos))
}

type torchRequest struct {
	Mode string `json:"mode"`
}

func (h *ScannerHandler) setTorch(w http.ResponseWriter, r *http.Request) {
	var req torchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	mode, err := capture.ParseTorchMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.respond(w, h.session.Scanner().SetTorchMode(mode))
}

func (h *ScannerHandler) setRegion(w http.ResponseWriter, r *http.Request) {
	var region focus.Rect
	if err := json.NewDecoder(r.Body).Decode(&region); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.respond(w, h.session.Scanner().SetScanRegion(region))
}

func (h *ScannerHandler) setFocus(w http.ResponseWriter, r *http.Request) {
	var p focus.Point
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.respond(w, h.session.Scanner().SetFocusPoint(p))
}

type stillResult struct {
	still *scanner.Still
	err   error
}

// still captures one image and returns it as image/jpeg.
func (h *ScannerHandler) still(w http.ResponseWriter, r *http.Request) {
	done := make(chan stillResult, 1)
	err := h.session.Scanner().CaptureStillImage(func(s *scanner.Still, err error) {
		done <- stillResult{still: s, err: err}
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	select {
	case res := <-done:
		if res.err != nil {
			writeError(w, statusFor(res.err), res.err.Error())
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(res.still.JPEG)))
		w.Header().Set("X-Capture-Width", strconv.Itoa(res.still.Width))
		w.Header().Set("X-Capture-Height", strconv.Itoa(res.still.Height))
		w.Header().Set("X-Capture-Camera", res.still.Camera.String())
		w.WriteHeader(http.StatusOK)
		w.Write(res.still.JPEG)
	case <-ctx.Done():
		writeError(w, http.StatusGatewayTimeout, "Still capture timed out")
	}
}

// permission requests camera access and reports the outcome.
func (h *ScannerHandler) permission(w http.ResponseWriter, r *http.Request) {
	done := make(chan bool, 1)
	h.session.Scanner().RequestPermission(func(granted bool) { done <- granted })

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	select {
	case granted := <-done:
		writeJSON(w, http.StatusOK, map[string]any{
			"granted": granted,
			"status":  h.session.Scanner().PermissionStatus(),
		})
	case <-ctx.Done():
		writeError(w, http.StatusGatewayTimeout, "Permission request pending")
	}
}
