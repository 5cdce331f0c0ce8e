// Package statusfeed streams per-frame drowsiness status to dashboards over
// websocket.
package statusfeed

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"drivercam/pipeline"
)

// Message types
const (
	TypeWelcome = "WELCOME"
	TypeStatus  = "STATUS"
	TypeSummary = "SUMMARY"
	TypePing    = "PING"
	TypePong    = "PONG"
)

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Global debug function for statusfeed package
var debugMsgFunc func(string, string, ...string)

// SetDebugFunction allows main package to provide debug function
func SetDebugFunction(fn func(string, string, ...string)) {
	debugMsgFunc = fn
}

func debugMsg(component, message string, sessionID ...string) {
	if debugMsgFunc != nil {
		debugMsgFunc(component, message, sessionID...)
	}
}

// Message is the envelope for everything sent over the socket
type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Status is the per-frame payload
type Status struct {
	SessionID      string   `json:"session_id"`
	Frame          int64    `json:"frame"`
	FaceFound      bool     `json:"face_found"`
	EAR            *float64 `json:"ear,omitempty"`
	Level          string   `json:"level"`
	Label          string   `json:"label"`
	ClosedFrames   int      `json:"closed_frames"`
	FaceLostFrames int      `json:"face_lost_frames"`
	LatencyMs      float64  `json:"latency_ms"`
	FPS            float64  `json:"fps"`
}

// StatusFromOutput converts one processed frame into its feed payload
func StatusFromOutput(sessionID string, out pipeline.Output) Status {
	s := Status{
		SessionID:      sessionID,
		Frame:          out.Frame,
		FaceFound:      out.FaceFound,
		Level:          out.Status.Level.String(),
		Label:          out.Status.Label(),
		ClosedFrames:   out.Status.ClosedFrames,
		FaceLostFrames: out.Status.FaceLostFrames,
		LatencyMs:      out.Timing.LastLatency,
		FPS:            out.Timing.FPS,
	}
	if out.HasMetric {
		m := out.Metric
		s.EAR = &m
	}
	return s
}

type client struct {
	conn   *websocket.Conn
	id     string
	send   chan Message
	mu     sync.Mutex
	closed bool
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// offer queues msg without blocking. It reports false when the client is
// closed or its buffer is full.
func (c *client) offer(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Hub fans frame status out to every connected websocket client. Publish never
// blocks the frame loop: a client whose buffer is full misses that message.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	upgrader websocket.Upgrader
	dropped  atomic.Int64
	sent     atomic.Int64
	closed   bool
	now      func() time.Time
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now: time.Now,
	}
}

// Handler returns the HTTP routes: /ws for the feed and /api/health.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/api/health", h.handleHealth)
	return mux
}

// ServeWS upgrades the request and serves the client until it disconnects
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		debugMsg("STATUSFEED", fmt.Sprintf("websocket upgrade failed: %v", err))
		return
	}

	id := r.URL.Query().Get("clientId")
	if id == "" {
		id = uuid.NewString()
	}
	c := &client{conn: conn, id: id, send: make(chan Message, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	if old, ok := h.clients[id]; ok {
		old.close()
	}
	h.clients[id] = c
	h.mu.Unlock()
	debugMsg("STATUSFEED", fmt.Sprintf("Client connected: %s", id))

	h.trySend(c, Message{
		Type:      TypeWelcome,
		ClientID:  id,
		Timestamp: h.now().Unix(),
		Payload:   map[string]interface{}{"message": "Connected to drowsiness status feed"},
	})

	go h.writePump(c)
	h.readPump(c)

	h.mu.Lock()
	if h.clients[id] == c {
		delete(h.clients, id)
	}
	h.mu.Unlock()
	c.close()
	debugMsg("STATUSFEED", fmt.Sprintf("Client disconnected: %s", id))
}

// readPump answers PINGs and detects disconnects
func (h *Hub) readPump(c *client) {
	defer c.conn.Close()

	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				debugMsg("STATUSFEED", fmt.Sprintf("websocket error for %s: %v", c.id, err))
			}
			return
		}
		if msg.Type == TypePing {
			h.trySend(c, Message{Type: TypePong, ClientID: c.id, Timestamp: h.now().Unix()})
		}
	}
}

// writePump is the only writer on the connection
func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
			h.sent.Add(1)

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) trySend(c *client, msg Message) {
	if !c.offer(msg) {
		h.dropped.Add(1)
	}
}

func (h *Hub) broadcast(msgType string, payload interface{}) {
	msg := Message{Type: msgType, Payload: payload, Timestamp: h.now().Unix()}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		h.trySend(c, msg)
	}
}

// Publish queues one frame's status for every client without blocking
func (h *Hub) Publish(s Status) {
	h.broadcast(TypeStatus, s)
}

// PublishSummary sends the end-of-run summary
func (h *Hub) PublishSummary(s pipeline.Summary) {
	h.broadcast(TypeSummary, map[string]interface{}{
		"session_id":         s.SessionID,
		"frames":             s.Frames,
		"average_latency_ms": s.AverageLatency,
		"average_fps":        s.AverageFPS,
		"alarm_episodes":     s.AlarmEpisodes,
		"longest_closed_run": s.LongestClosedRun,
		"face_lost_frames":   s.FaceLostFrames,
	})
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were skipped because a client was slow
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client; later connections are refused
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, c := range h.clients {
		c.close()
		delete(h.clients, id)
	}
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": "Method not allowed",
		})
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "healthy",
		"active_clients": h.Clients(),
		"sent":           h.sent.Load(),
		"dropped":        h.Dropped(),
		"timestamp":      h.now().Format(time.RFC3339),
	})
}
