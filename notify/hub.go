package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"visittrack/api/models"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
)

type client struct {
	conn          *websocket.Conn
	salespersonID string
	send          chan []byte
}

func newClient(conn *websocket.Conn, salespersonID string) *client {
	c := &client{
		conn:          conn,
		salespersonID: salespersonID,
		send:          make(chan []byte, sendBuffer),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Hub pushes notifications to the websocket connections of the salesperson
// they are addressed to. A client that cannot keep up loses messages.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	upgrader websocket.Upgrader
}

func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "" || origin == allowedOrigin
			},
		},
	}
}

// ServeWS upgrades the request and streams the salesperson's notifications
// until the peer disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, salespersonID string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	c := newClient(conn, salespersonID)
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	log.Printf("Salesperson %s connected for notifications", salespersonID)

	// Reads only detect the peer going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(c)
	log.Printf("Salesperson %s disconnected from notifications", salespersonID)
	return nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients for a salesperson.
func (h *Hub) ClientCount(salespersonID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.salespersonID == salespersonID {
			n++
		}
	}
	return n
}

func (h *Hub) Deliver(_ context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.clients {
		if c.salespersonID != n.SalespersonID {
			continue
		}
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("dropped %s notification for %d slow client(s)", n.Kind, dropped)
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
