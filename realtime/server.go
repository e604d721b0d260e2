package realtime

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"tripweave/activity"
	"tripweave/middleware"
	"tripweave/store"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dbTimeout = 5 * time.Second

// Server owns the hub, the presence registry and the event dispatch for the
// collaborative session protocol.
type Server struct {
	hub      *Hub
	presence *Registry
	store    store.Store
	activity *activity.Logger
	upgrader websocket.Upgrader
}

func NewServer(s store.Store, logger *activity.Logger) *Server {
	return &Server{
		hub:      NewHub(),
		presence: NewRegistry(),
		store:    s,
		activity: logger,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Hub exposes the connection index, used by shutdown.
func (s *Server) Hub() *Hub { return s.hub }

// Stop closes every live connection.
func (s *Server) Stop() { s.hub.Stop() }

// HandleWS authenticates the handshake and runs the connection. The bearer
// token travels in the "token" query parameter (with an Authorization
// header fallback); auth runs before the upgrade, so no event is
// processable on a refused connection.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
			token = h[7:]
		}
	}
	if token == "" {
		http.Error(w, "No token provided", http.StatusUnauthorized)
		return
	}

	claims, err := middleware.ParseToken(token)
	if err != nil {
		http.Error(w, "Token is invalid", http.StatusUnauthorized)
		return
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		http.Error(w, "Token is invalid", http.StatusUnauthorized)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), dbTimeout)
	user, err := s.store.UserByID(ctx, userID)
	cancel()
	if err != nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("ws upgrade:", err)
		return
	}

	client := &Client{
		ID:       uuid.NewString(),
		UserID:   user.ID,
		Username: user.Username,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
	}

	s.hub.Register(client)
	log.Printf("ws connected: conn=%s user=%s", client.ID, user.ID.Hex())

	go client.writePump()
	s.readPump(client)
}

// readPump handles frames to completion in order, one goroutine per
// connection. Any read error means disconnect and unconditional presence
// cleanup.
func (s *Server) readPump(c *Client) {
	defer s.disconnect(c)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			log.Printf("ws invalid frame from %s: %v", c.ID, err)
			continue
		}
		s.dispatch(c, &env)
	}
}

// dispatch routes one inbound event. Each handler is its own failure
// domain: a panic is recovered here and the connection lives on.
func (s *Server) dispatch(c *Client, env *Envelope) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ws handler panic (%s from %s): %v", env.Event, c.ID, r)
		}
	}()

	switch env.Event {
	case EvtJoinTrip:
		s.handleJoinTrip(c, env)
	case EvtCreateNode:
		s.handleCreateNode(c, env)
	case EvtMoveNode:
		s.handleMoveNode(c, env)
	case EvtUpdateNodeDetails:
		s.handleUpdateNodeDetails(c, env)
	case EvtDeleteNode:
		s.handleDeleteNode(c, env)
	case EvtCreateConnection:
		s.handleCreateConnection(c, env)
	case EvtDeleteConnection:
		s.handleDeleteConnection(c, env)
	case EvtCreateTask:
		s.handleCreateTask(c, env)
	case EvtUpdateTask:
		s.handleUpdateTask(c, env)
	case EvtDeleteTask:
		s.handleDeleteTask(c, env)
	case EvtCreateComment:
		s.handleCreateComment(c, env)
	case EvtDeleteComment:
		s.handleDeleteComment(c, env)
	case EvtUpdateCursor:
		s.handleUpdateCursor(c, env)
	case EvtWebrtcSignal:
		s.handleWebrtcSignal(c, env)
	default:
		log.Printf("ws unknown event %q from %s", env.Event, c.ID)
	}
}

// sendError emits a client-directed error event.
func (s *Server) sendError(c *Client, msg string) {
	s.hub.Send(c, Encode(EvtError, ErrorPayload{Message: msg}))
}

// ack answers a correlated request. No-op when the client sent no id.
func (s *Server) ack(c *Client, ackID string, data any) {
	if ackID == "" {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("ack marshal: %v", err)
		return
	}
	frame, err := json.Marshal(Envelope{Event: EvtAck, Ack: ackID, Data: raw})
	if err != nil {
		return
	}
	s.hub.Send(c, frame)
}

func (s *Server) ackError(c *Client, ackID, msg string) {
	if ackID == "" {
		// Fire-and-forget issue; server-side log is the only surface.
		log.Printf("ws op failed for %s: %s", c.ID, msg)
		return
	}
	s.ack(c, ackID, map[string]string{"error": msg})
}

// disconnect tears the connection down and runs presence cleanup.
func (s *Server) disconnect(c *Client) {
	tripID := c.tripID
	s.hub.Unregister(c)
	c.conn.Close()
	log.Printf("ws disconnected: conn=%s user=%s", c.ID, c.UserID.Hex())

	if tripID == "" {
		return
	}
	if last := s.presence.RemoveConnection(tripID, c.UserID.Hex(), c.ID); last {
		s.hub.Broadcast(tripID, Encode(EvtUserLeft, RoomUser{ID: c.UserID.Hex(), Username: c.Username}), nil)
	}
	s.hub.Broadcast(tripID, Encode(EvtLiveUsersUpdate, s.presence.Snapshot(tripID)), nil)
}

func opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), dbTimeout)
}
