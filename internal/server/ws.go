package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/codescan/internal/dispatch"
	"github.com/ayusman/codescan/internal/metrics"
)

const (
	writeWait    = 5 * time.Second
	clientBuffer = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// ResultsHandler broadcasts delivered result batches over WebSocket.
type ResultsHandler struct {
	log    *slog.Logger
	cancel func()

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
}

// NewResultsHandler subscribes to feed and fans batches out to clients.
func NewResultsHandler(feed Feed, logger *slog.Logger) *ResultsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &ResultsHandler{
		log:     logger,
		clients: make(map[*websocket.Conn]chan []byte),
	}
	h.cancel = feed.Subscribe(h.broadcast)
	return h
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ResultsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	send := make(chan []byte, clientBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.clients[conn] = send
	h.mu.Unlock()
	metrics.WebsocketConnections.Inc()

	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[conn]; ok {
			delete(h.clients, conn)
			close(send)
		}
		h.mu.Unlock()
		metrics.WebsocketConnections.Dec()
	}()

	// Reader detects the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case msg, ok := <-send:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// broadcast runs on the host UI queue and must not block; slow clients
// miss batches.
func (h *ResultsHandler) broadcast(b dispatch.Batch) {
	msg, err := json.Marshal(b)
	if err != nil {
		h.log.Error("encode batch", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, send := range h.clients {
		select {
		case send <- msg:
		default:
			h.log.Debug("result feed client lagging, batch dropped")
		}
	}
}

// Clients returns the number of connected clients.
func (h *ResultsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close unsubscribes from the feed and disconnects every client.
func (h *ResultsHandler) Close() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for conn, send := range h.clients {
		close(send)
		delete(h.clients, conn)
	}
}
