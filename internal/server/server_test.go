package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/codescan/internal/capture"
	"github.com/ayusman/codescan/internal/decoder"
	"github.com/ayusman/codescan/internal/dispatch"
	"github.com/ayusman/codescan/internal/log"
	"github.com/ayusman/codescan/internal/preview"
)

// fakeFeed is a Feed driven by the test.
type fakeFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(dispatch.Batch)
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(map[int]func(dispatch.Batch))}
}

func (f *fakeFeed) Subscribe(fn func(dispatch.Batch)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *fakeFeed) emit(b dispatch.Batch) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fn := range f.subs {
		fn(b)
	}
}

func (f *fakeFeed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func TestServer_Health(t *testing.T) {
	s := New(Config{Logger: log.Discard()})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
		if _, exists := response["scanner"]; exists {
			t.Error("scanner state should be absent without a session")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_OptionalRoutes(t *testing.T) {
	s := New(Config{Logger: log.Discard()})

	for _, path := range []string{"/api/scans", "/api/bindings", "/api/scanner", "/api/stream", "/api/results", "/metrics", "/"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d without config, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>codescan</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir, Logger: log.Discard()})

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/", http.StatusOK, testContent},
		{"/missing.html", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, rec.Code)
			}
			if tt.body != "" && rec.Body.String() != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, rec.Body.String())
			}
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	s := New(Config{Metrics: true, Logger: log.Discard()})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "codescan_websocket_active_connections") {
		t.Error("metrics output should include codescan collectors")
	}
}

func TestServer_SnapshotWithoutLayer(t *testing.T) {
	s := New(Config{Surface: preview.NewSurface(640, 480), Logger: log.Discard()})

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/preview.jpg", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
	}
}

func TestResultsHandler_Broadcast(t *testing.T) {
	feed := newFakeFeed()
	s := New(Config{Feed: feed, Logger: log.Discard()})
	defer s.Close()

	ts := httptest.NewServer(s)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/results"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.results.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	feed.emit(dispatch.Batch{
		Seq:    7,
		Camera: capture.PositionFront,
		Codes:  []decoder.Code{{Symbology: decoder.QR, Payload: "hello"}},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var got dispatch.Batch
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("failed to decode batch %s: %v", msg, err)
	}
	if got.Seq != 7 || got.Camera != capture.PositionFront || len(got.Codes) != 1 || got.Codes[0].Payload != "hello" {
		t.Errorf("received %+v", got)
	}
	if !strings.Contains(string(msg), `"camera":"front"`) {
		t.Errorf("camera should be encoded by name: %s", msg)
	}

	s.Close()
	if feed.subscribers() != 0 {
		t.Error("Close() should unsubscribe from the feed")
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("expected connection to close after server Close")
	}
}

func TestStreamHandler_Method(t *testing.T) {
	h := NewStreamHandler(preview.NewSurface(640, 480), 0)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
	if h.interval != time.Second/15 {
		t.Errorf("default interval = %s", h.interval)
	}
}

func TestWritePart(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := writePart(rec, []byte("jpeg")); err != nil {
		t.Fatalf("writePart() error = %v", err)
	}
	body, _ := io.ReadAll(rec.Body)
	want := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 4\r\n\r\njpeg\r\n"
	if string(body) != want {
		t.Errorf("writePart() wrote %q, want %q", body, want)
	}
}
