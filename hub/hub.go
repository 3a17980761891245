// Package hub pushes reservation and table changes to connected staff
// dashboards over websockets.
package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-reservation/models"
)

const (
	EventTableUpdate = "table_update"
	EventTableCreate = "table_create"
	EventTableDelete = "table_delete"
)

const (
	// writeWait bounds a single write to a board client.
	writeWait = 10 * time.Second
	// sendBuffer is how many messages may queue for one client before it is
	// dropped as too slow.
	sendBuffer = 16
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type client struct {
	conn *websocket.Conn
	role string
	send chan []byte
}

// Hub keeps every connected board client. Each client has its own writer
// goroutine, so Broadcast only queues and never waits on the network.
type Hub struct {
	clients map[*websocket.Conn]*client
	mutex   sync.Mutex
	log     logrus.FieldLogger
}

func New(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]*client),
		log:     log,
	}
}

func (h *Hub) Register(conn *websocket.Conn, role string) {
	c := &client{conn: conn, role: role, send: make(chan []byte, sendBuffer)}

	h.mutex.Lock()
	h.clients[conn] = c
	h.mutex.Unlock()

	go c.writeLoop()
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(conn)
	conn.Close()
}

func (h *Hub) Count() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Notify implements services.ChangeNotifier.
func (h *Hub) Notify(_ context.Context, ev models.ReservationEvent) {
	h.Broadcast(Message{Event: ev.Type, Data: ev})
}

func (h *Hub) BroadcastTable(event string, table models.Table, stats map[string]int64) {
	h.Broadcast(Message{
		Event: event,
		Data: map[string]interface{}{
			"table": table,
			"stats": stats,
		},
	})
}

// Broadcast queues msg for every client. A client whose queue is full is
// dropped.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("marshal board message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for conn, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.WithField("role", c.role).Warn("drop slow board client")
			h.removeLocked(conn)
			conn.Close()
		}
	}
	h.log.WithFields(logrus.Fields{"event": msg.Event, "clients": len(h.clients)}).Debug("board message queued")
}

// removeLocked forgets conn and stops its writer. Callers hold h.mutex.
func (h *Hub) removeLocked(conn *websocket.Conn) {
	if c, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(c.send)
	}
}

func (c *client) writeLoop() {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// the reader in the board handler sees the close and unregisters
			c.conn.Close()
			return
		}
	}
}
