package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/codescan/internal/preview"
)

// StreamHandler serves the preview surface as MJPEG.
type StreamHandler struct {
	surface  *preview.Surface
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler. fps caps the frame rate; values
// less than or equal to 0 use 15.
func NewStreamHandler(surface *preview.Surface, fps int) *StreamHandler {
	if fps <= 0 {
		fps = 15
	}
	return &StreamHandler{
		surface:  surface,
		interval: time.Second / time.Duration(fps),
	}
}

// ServeHTTP streams MJPEG frames to the client until it disconnects. While
// no layer is attached the stream idles.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var lastSeq uint64
	lastLayer := h.surface.Layer()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		layer := h.surface.Layer()
		if layer == nil {
			continue
		}
		if layer != lastLayer {
			lastLayer, lastSeq = layer, 0
		}

		frame, seq := layer.Latest()
		if frame == nil || seq == lastSeq {
			continue
		}
		lastSeq = seq

		if err := writePart(w, frame); err != nil {
			return
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}

func writePart(w http.ResponseWriter, frame []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
		return err
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\r\n")
	return err
}
