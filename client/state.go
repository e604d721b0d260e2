package client

import (
	"encoding/json"
	"log"
	"sync"

	"tripweave/models"
	"tripweave/realtime"
)

// TripState is the client-side mirror of one trip's canvas. Binding it to a
// connection keeps it converged with the canonical broadcast stream; local
// optimistic edits are overwritten by whatever the server says.
type TripState struct {
	mu sync.Mutex

	Nodes       map[string]*models.Node
	Connections map[string]*models.Connection
	Tasks       map[string]*models.Task
	Comments    []models.CommentPopulated
	Live        []realtime.RoomUser
	Cursors     map[string]models.Position
}

func NewTripState() *TripState {
	return &TripState{
		Nodes:       make(map[string]*models.Node),
		Connections: make(map[string]*models.Connection),
		Tasks:       make(map[string]*models.Task),
		Cursors:     make(map[string]models.Position),
	}
}

// Bind subscribes the state to every canvas broadcast on c.
func (s *TripState) Bind(c *Client) {
	c.On(realtime.EvtNodeCreated, s.applyNodeUpsert)
	c.On(realtime.EvtNodeUpdated, s.applyNodeUpsert)
	c.On(realtime.EvtNodeMoved, s.applyNodeMoved)
	c.On(realtime.EvtNodeDeleted, s.applyNodeDeleted)
	c.On(realtime.EvtConnectionCreated, s.applyConnectionCreated)
	c.On(realtime.EvtConnectionDeleted, s.applyConnectionDeleted)
	c.On(realtime.EvtTaskCreated, s.applyTaskUpsert)
	c.On(realtime.EvtTaskUpdated, s.applyTaskUpsert)
	c.On(realtime.EvtTaskDeleted, s.applyTaskDeleted)
	c.On(realtime.EvtCommentCreated, s.applyCommentCreated)
	c.On(realtime.EvtCommentDeleted, s.applyCommentDeleted)
	c.On(realtime.EvtLiveUsersUpdate, s.applyLiveUsers)
	c.On(realtime.EvtUserLeft, s.applyUserLeft)
	c.On(realtime.EvtCursorMoved, s.applyCursorMoved)
}

func (s *TripState) applyNodeUpsert(raw json.RawMessage) {
	var node models.Node
	if err := json.Unmarshal(raw, &node); err != nil {
		log.Printf("state: bad node payload: %v", err)
		return
	}
	s.mu.Lock()
	s.Nodes[node.ID.Hex()] = &node
	s.mu.Unlock()
}

func (s *TripState) applyNodeMoved(raw json.RawMessage) {
	var payload realtime.NodeMovedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	s.mu.Lock()
	if node := s.Nodes[payload.NodeID]; node != nil {
		node.Position = payload.NewPosition
	}
	s.mu.Unlock()
}

func (s *TripState) applyNodeDeleted(raw json.RawMessage) {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return
	}
	s.mu.Lock()
	delete(s.Nodes, id)
	s.mu.Unlock()
}

func (s *TripState) applyConnectionCreated(raw json.RawMessage) {
	var conn models.Connection
	if err := json.Unmarshal(raw, &conn); err != nil {
		return
	}
	s.mu.Lock()
	s.Connections[conn.ID.Hex()] = &conn
	s.mu.Unlock()
}

func (s *TripState) applyConnectionDeleted(raw json.RawMessage) {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return
	}
	s.mu.Lock()
	delete(s.Connections, id)
	s.mu.Unlock()
}

func (s *TripState) applyTaskUpsert(raw json.RawMessage) {
	var task models.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return
	}
	s.mu.Lock()
	s.Tasks[task.ID.Hex()] = &task
	s.mu.Unlock()
}

func (s *TripState) applyTaskDeleted(raw json.RawMessage) {
	var payload realtime.TaskDeletedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	s.mu.Lock()
	delete(s.Tasks, payload.TaskID)
	s.mu.Unlock()
}

func (s *TripState) applyCommentCreated(raw json.RawMessage) {
	var comment models.CommentPopulated
	if err := json.Unmarshal(raw, &comment); err != nil {
		return
	}
	s.mu.Lock()
	// Creation order matters: append keeps oldest first.
	s.Comments = append(s.Comments, comment)
	s.mu.Unlock()
}

func (s *TripState) applyCommentDeleted(raw json.RawMessage) {
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return
	}
	s.mu.Lock()
	kept := s.Comments[:0]
	for _, c := range s.Comments {
		if c.ID.Hex() != id {
			kept = append(kept, c)
		}
	}
	s.Comments = kept
	s.mu.Unlock()
}

func (s *TripState) applyLiveUsers(raw json.RawMessage) {
	var users []realtime.RoomUser
	if err := json.Unmarshal(raw, &users); err != nil {
		return
	}
	s.mu.Lock()
	s.Live = users
	s.mu.Unlock()
}

func (s *TripState) applyUserLeft(raw json.RawMessage) {
	var user realtime.RoomUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return
	}
	// A departed peer's cursor and any call negotiation keyed on them are
	// stale now.
	s.mu.Lock()
	delete(s.Cursors, user.ID)
	s.mu.Unlock()
}

func (s *TripState) applyCursorMoved(raw json.RawMessage) {
	var payload realtime.CursorMovedPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}
	s.mu.Lock()
	s.Cursors[payload.UserID] = payload.Position
	s.mu.Unlock()
}

// NodeCount returns the number of nodes currently on the mirror.
func (s *TripState) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Nodes)
}

// ConnectionCount returns the number of edges currently on the mirror.
func (s *TripState) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Connections)
}

// LiveUsers returns a copy of the last roster broadcast.
func (s *TripState) LiveUsers() []realtime.RoomUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]realtime.RoomUser(nil), s.Live...)
}

// Node returns a copy of one node by hex id.
func (s *TripState) Node(id string) (models.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := s.Nodes[id]; n != nil {
		return *n, true
	}
	return models.Node{}, false
}
