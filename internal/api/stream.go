package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trailgo/pkg/logging"
	"trailgo/pkg/marker"
	"trailgo/pkg/sim"
	"trailgo/pkg/trail"
)

const (
	streamWriteWait  = 5 * time.Second
	streamSendBuffer = 4
)

// Batch is one frame as pushed to stream clients.
type Batch struct {
	Clock   sim.Status     `json:"clock"`
	Trails  []trail.Frame  `json:"trails"`
	Markers []marker.State `json:"markers"`
}

type streamClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// StreamHub pushes every completed frame to connected WebSocket clients.
// Slow clients miss frames instead of stalling the frame loop.
type StreamHub struct {
	trails   *TrailHandler
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*streamClient
}

// NewStreamHub creates a hub broadcasting the frames collected by trails.
func NewStreamHub(trails *TrailHandler) *StreamHub {
	return &StreamHub{
		trails: trails,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:  slog.With("component", "stream"),
		clients: make(map[string]*streamClient),
	}
}

// EndFrame implements core.FrameSink.
func (h *StreamHub) EndFrame(st sim.Status) {
	h.trails.EndFrame(st)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}

	clock, frames, markers := h.trails.Snapshot()
	msg, err := json.Marshal(Batch{Clock: clock, Trails: frames, Markers: markers})
	if err != nil {
		h.logger.Error("Failed to encode frame batch", "error", err)
		return
	}

	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logging.Trace(h.logger, "Dropped frame for slow client", "client", c.id)
		}
	}
}

// Clients returns the number of connected clients.
func (h *StreamHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleStream upgrades the request and streams batches until the client leaves.
// GET /api/stream
func (h *StreamHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	// The server's read timeout must not end long-lived streams.
	_ = conn.SetReadDeadline(time.Time{})

	c := &streamClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, streamSendBuffer),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Info("Stream client connected", "client", c.id, "remote", r.RemoteAddr)

	go h.writeLoop(c)

	// Clients never send anything meaningful; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(c)
	h.logger.Info("Stream client disconnected", "client", c.id)
}

func (h *StreamHub) writeLoop(c *streamClient) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logging.Trace(h.logger, "Stream write failed", "client", c.id, "error", err)
			h.remove(c)
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
}

// Close disconnects all clients.
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.send)
	}
}
