package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// client serializes writes: gorilla allows one concurrent writer per conn.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(msg)
}

// write expects c.mu to be held.
func (c *client) write(msg []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub holds every connected player UI and broadcasts library events.
type Hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
	log     *logger.ZapLogger
}

func NewHub(log *logger.ZapLogger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		log:     log,
	}
}

// Join registers conn and writes the message built by first before any
// broadcast can reach it. first runs while the client's write lock is
// held, so a snapshot built there is never overtaken by an older one.
func (h *Hub) Join(conn *websocket.Conn, first func() ([]byte, error)) error {
	c := &client{conn: conn}
	c.mu.Lock()
	defer c.mu.Unlock()

	h.mu.Lock()
	h.clients[conn] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "ws client registered",
		Fields:  map[string]any{"conns": n},
	})

	if first == nil {
		return nil
	}
	msg, err := first()
	if err != nil {
		return err
	}
	return c.write(msg)
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[conn]; !ok {
		return
	}
	delete(h.clients, conn)
	conn.Close()
	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "ws client unregistered",
		Fields:  map[string]any{"conns": len(h.clients)},
	})
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.log.Log(logger.LogEntry{
				Level:   "warn",
				Message: "ws send failed",
				Error:   err,
			})
			h.Unregister(c.conn)
		}
	}
}

// Pump forwards events from src to all clients until ctx is done.
func (h *Hub) Pump(ctx context.Context, src ports.EventSource) error {
	events, unsubscribe := src.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				h.log.Log(logger.LogEntry{
					Level:   "error",
					Message: "marshal event",
					Error:   err,
				})
				continue
			}
			h.Broadcast(payload)
		}
	}
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}
