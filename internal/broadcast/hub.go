package broadcast

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub maintains the set of connected dashboard clients and publishes
// pipeline events to them
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool
}

// client is one connected dashboard subscriber. Events are queued on a
// buffered channel; a full channel means the client is too slow and the
// connection is dropped.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Dashboard origin is enforced upstream
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]bool),
	}
}

// SetupRoutes configures the event stream route
func (h *Hub) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/events", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and serves events until the
// client disconnects
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, 32),
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	log.Printf("Event stream client connected from %s (%d total)", r.RemoteAddr, count)

	go h.writeLoop(c)
	h.readLoop(c)
}

// writeLoop drains the client's send queue
func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.remove(c)
			return
		}
	}
	// Queue closed: the client was dropped for falling behind
	c.conn.Close()
}

// readLoop consumes (and discards) inbound frames so pings and close
// frames are processed, and tears the client down on disconnect
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Event stream read error: %v", err)
			}
			return
		}
	}
}

// remove unregisters and closes a client. Safe to call more than once;
// only the first caller closes the send queue, and Publish can never
// race it because senders hold the lock while the client is registered.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.mu.Unlock()

	close(c.send)
	c.conn.Close()
	log.Printf("Event stream client disconnected")
}

// Publish fans an event out to every connected client without blocking.
// Clients whose queue is full are dropped.
func (h *Hub) Publish(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to encode broadcast event: %v", err)
		return
	}

	h.mu.RLock()
	slow := make([]*client, 0)
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Printf("Dropping slow event stream client")
		h.remove(c)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
