package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/couchcryptid/location-fix-service/internal/domain"
	"github.com/couchcryptid/location-fix-service/internal/observability"
)

const clientBuffer = 16

// Hub pushes every published snapshot to connected WebSocket clients.
type Hub struct {
	locator   Locator
	formatter domain.Formatter
	metrics   *observability.Metrics
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub. Call Run to start forwarding snapshots.
// allowedOrigins lists the Origin header values accepted on upgrade; when it
// is empty only same-origin requests (or requests without Origin) are accepted.
func NewHub(locator Locator, formatter domain.Formatter, allowedOrigins []string, metrics *observability.Metrics, logger *slog.Logger) *Hub {
	h := &Hub{
		locator:   locator,
		formatter: formatter,
		metrics:   metrics,
		logger:    logger,
		clients:   make(map[*wsClient]struct{}),
	}
	if len(allowedOrigins) > 0 {
		h.upgrader.CheckOrigin = originChecker(allowedOrigins)
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Run broadcasts snapshots until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	updates, cancel := h.locator.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case s := <-updates:
			h.broadcast(s)
		}
	}
}

// ServeWS upgrades the connection and sends the current view followed by
// every later one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	closed := h.closed
	h.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, clientBuffer)}
	if data, err := h.encode(h.locator.Snapshot()); err == nil {
		client.send <- data
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", "clients", n)

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
	}()

	// Reader goroutine, needed to process control frames.
	go func() {
		defer h.remove(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) encode(s domain.AcquisitionState) ([]byte, error) {
	return json.Marshal(NewView(s, h.formatter))
}

func (h *Hub) broadcast(s domain.AcquisitionState) {
	data, err := h.encode(s)
	if err != nil {
		h.logger.Error("encode snapshot", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- data:
			h.metrics.SnapshotsPublished.WithLabelValues("ws").Inc()
		default:
			// Client too slow, skip
		}
	}
}

func (h *Hub) remove(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Info("websocket client disconnected", "clients", len(h.clients))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
