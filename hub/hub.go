package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yeremiapane/library-seat-app/utils"
)

// Event types
const (
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventBookingStatus    = "booking_status"
	EventPaymentCompleted = "payment_completed"
	EventDashboardUpdate  = "dashboard_update"
)

const (
	writeWait = 5 * time.Second
	// queued messages per client before it is dropped as too slow
	sendBuffer = 32
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	libraryID uint // 0 for super admins
	role      string
	send      chan []byte
}

// Hub fans live events out to connected library dashboards. Admin
// connections only receive events of their own library; super admin
// connections receive everything.
//
// Each connection has its own writer goroutine, so broadcasting never waits
// on a socket.
type Hub struct {
	clients map[Conn]*client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[Conn]*client)}
}

func (h *Hub) RegisterClient(conn Conn, role string, libraryID uint) {
	cl := &client{libraryID: libraryID, role: role, send: make(chan []byte, sendBuffer)}
	h.mutex.Lock()
	if _, ok := h.clients[conn]; ok {
		h.mutex.Unlock()
		return
	}
	h.clients[conn] = cl
	h.mutex.Unlock()

	go h.writePump(conn, cl)
}

// UnregisterClient stops delivery; the writer closes the connection once it
// has flushed what was already queued.
func (h *Hub) UnregisterClient(conn Conn) {
	h.remove(conn)
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

func (h *Hub) remove(conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if cl, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(cl.send)
	}
}

// writePump is the only goroutine writing to conn.
func (h *Hub) writePump(conn Conn, cl *client) {
	defer conn.Close()
	for data := range cl.send {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.Printf("Error writing to live client (%s): %v", cl.role, err)
			h.remove(conn)
			return
		}
	}
}

// Broadcast sends an event scoped to one library.
func (h *Hub) Broadcast(libraryID uint, event string, data interface{}) {
	if h == nil {
		return
	}
	h.send(libraryID, Message{Event: event, Data: data})
}

func (h *Hub) BroadcastDashboardUpdate(libraryID uint) {
	h.Broadcast(libraryID, EventDashboardUpdate, map[string]interface{}{"library_id": libraryID})
}

func (h *Hub) send(libraryID uint, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, cl := range h.clients {
		if cl.libraryID != 0 && cl.libraryID != libraryID {
			continue
		}
		select {
		case cl.send <- data:
		default:
			utils.ErrorLogger.Printf("Live client (%s) is not keeping up, dropping it", cl.role)
			delete(h.clients, conn)
			close(cl.send)
		}
	}
}
