package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/rjwaters/cineshelf/internal/auth"
)

// ──────────────────── WebSocket Hub ────────────────────

// WSHub fans job events out to connected clients. A slow client drops
// messages rather than stalling the broadcaster.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*WSClient]bool

	// Latest in-flight progress event per kind, replayed to new clients so
	// a page opened mid-scan shows the running task immediately.
	progressMu sync.RWMutex
	progress   map[string]json.RawMessage
}

type WSClient struct {
	conn     *websocket.Conn
	clientID string
	send     chan []byte
}

type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:  make(map[*WSClient]bool),
		progress: make(map[string]json.RawMessage),
	}
}

func (h *WSHub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		return
	}

	h.trackProgress(event, msg)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

// trackProgress keeps the latest progress message per task kind and clears
// it when the task finishes.
func (h *WSHub) trackProgress(event string, raw []byte) {
	h.progressMu.Lock()
	defer h.progressMu.Unlock()
	switch event {
	case "scan:start", "scan:progress":
		h.progress["scan"] = json.RawMessage(raw)
	case "scan:complete", "scan:failed":
		delete(h.progress, "scan")
	case "probe:progress":
		h.progress["probe"] = json.RawMessage(raw)
	case "probe:complete":
		delete(h.progress, "probe")
	}
}

func (h *WSHub) sendProgress(client *WSClient) {
	h.progressMu.RLock()
	defer h.progressMu.RUnlock()
	for _, msg := range h.progress {
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *WSHub) addClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHub) removeClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────── WebSocket Handler ────────────────────

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := auth.ExtractToken(r)
	if token == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	claims, err := s.tokens.Validate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("WebSocket accept error: %v", err)
		return
	}

	client := &WSClient{
		conn:     conn,
		clientID: claims.ClientID,
		send:     make(chan []byte, 64),
	}

	s.wsHub.addClient(client)
	s.wsHub.sendProgress(client)
	log.Printf("WebSocket client connected: %s", client.clientID)

	ctx := r.Context()

	// Writer goroutine
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range client.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader loop keeps the connection alive and handles pings.
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			break
		}
	}

	s.wsHub.removeClient(client)
	log.Printf("WebSocket client disconnected: %s", client.clientID)
}
