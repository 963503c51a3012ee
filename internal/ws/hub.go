package ws

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 16
)

// Message is the wire format for broadcast events.
type Message struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Hub fans published events out to all connected dashboard clients.
// It implements the scraper Publisher interface. Each client gets its
// own writer goroutine fed through a buffered channel, so Publish
// never blocks ingestion: a client that cannot keep up loses messages,
// and one whose writes fail is dropped.
type Hub struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]chan Message
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]chan Message),
	}
}

// HandleWS upgrades a dashboard connection and keeps it registered
// until the peer goes away.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	send := make(chan Message, sendBuffer)
	h.mu.Lock()
	h.conns[conn] = send
	total := len(h.conns)
	h.mu.Unlock()
	log.Printf("[ws] client connected (%d total)", total)

	go h.writeLoop(conn, send)

	// Drain the read side to notice disconnects; clients only listen.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish broadcasts an event to every connected client. Sends are
// non-blocking: a full client buffer means that client skips the
// message.
func (h *Hub) Publish(event string, payload map[string]any) {
	msg := Message{Event: event, Data: payload, Timestamp: time.Now()}

	h.mu.Lock()
	for _, send := range h.conns {
		select {
		case send <- msg:
		default:
		}
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// writeLoop owns all writes to one connection; gorilla connections
// allow only a single concurrent writer. Ends when the send channel is
// closed by drop or when a write fails.
func (h *Hub) writeLoop(conn *websocket.Conn, send chan Message) {
	for msg := range send {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			h.drop(conn)
			return
		}
	}
}

// drop unregisters a connection. The send channel is closed only after
// the connection leaves the map, and Publish sends only while holding
// the lock, so no send can race the close.
func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	send, known := h.conns[conn]
	delete(h.conns, conn)
	remaining := len(h.conns)
	h.mu.Unlock()

	if known {
		close(send)
		conn.Close()
		log.Printf("[ws] client disconnected (%d remaining)", remaining)
	}
}
