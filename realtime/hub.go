package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

// Client is one live websocket connection with its authenticated identity.
// tripID is written only from the connection's own read pump.
type Client struct {
	ID       string
	UserID   primitive.ObjectID
	Username string

	conn *websocket.Conn

	sendMu sync.Mutex
	send   chan []byte
	closed bool

	tripID string
}

// TripID returns the room this connection has joined, or "".
func (c *Client) TripID() string { return c.tripID }

// enqueue queues data unless the buffer is full. Goroutines fanning out to a
// member snapshot can race a drop of the same client; once the send channel
// is closed, delivery is a no-op, never a panic.
func (c *Client) enqueue(data []byte) bool {
	if data == nil {
		return true
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings. Exits when the send channel closes or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// Hub tracks live connections by room (trip id) and by user, and fans
// messages out. Slow consumers whose send buffer is full are dropped, same
// policy for every broadcast path.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool
	users map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]bool),
		users: make(map[string]map[*Client]bool),
	}
}

// Register indexes a freshly authenticated connection by user id.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	uid := c.UserID.Hex()
	if h.users[uid] == nil {
		h.users[uid] = make(map[*Client]bool)
	}
	h.users[uid][c] = true
}

// Unregister drops the connection from its room and the user index and
// closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room := h.rooms[c.tripID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.tripID)
		}
	}

	uid := c.UserID.Hex()
	if conns := h.users[uid]; conns != nil {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, uid)
		}
	}

	c.closeSend()
}

// JoinRoom places the connection into the room's broadcast group and pins
// the room id on the client. Re-joining the same room is a no-op.
func (h *Hub) JoinRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][c] = true
	c.tripID = room
}

// Broadcast delivers data to every member of room, except exclude when it
// is non-nil.
func (h *Hub) Broadcast(room string, data []byte, exclude *Client) {
	if data == nil {
		return
	}

	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		if c != exclude {
			members = append(members, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range members {
		if !c.enqueue(data) {
			h.drop(c)
		}
	}
}

// SendToUser delivers data to every live connection of one user. Returns
// false when the user has none; callers treat that as a silent no-op.
func (h *Hub) SendToUser(userID string, data []byte) bool {
	if data == nil {
		return false
	}

	h.mu.RLock()
	conns := make([]*Client, 0, len(h.users[userID]))
	for c := range h.users[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return false
	}
	for _, c := range conns {
		if !c.enqueue(data) {
			h.drop(c)
		}
	}
	return true
}

// Send queues data on one connection.
func (h *Hub) Send(c *Client, data []byte) {
	if data == nil {
		return
	}
	if !c.enqueue(data) {
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	h.Unregister(c)
	if c.conn != nil {
		c.conn.Close()
	}
}

// Stop closes every live connection; used on server shutdown.
func (h *Hub) Stop() {
	h.mu.Lock()
	var all []*Client
	for _, conns := range h.users {
		for c := range conns {
			all = append(all, c)
		}
	}
	h.rooms = make(map[string]map[*Client]bool)
	h.users = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	for _, c := range all {
		c.closeSend()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}
