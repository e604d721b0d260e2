package realtime

import (
	"encoding/json"
	"fmt"
	"log"

	"tripweave/models"
	"tripweave/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func (s *Server) handleJoinTrip(c *Client, env *Envelope) {
	// Failures surface on the error event and, when the client correlated
	// the request, on its ack as well.
	fail := func(msg string) {
		s.sendError(c, msg)
		if env.Ack != "" {
			s.ack(c, env.Ack, map[string]string{"error": msg})
		}
	}

	var payload JoinTripPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		fail("Invalid trip ID format")
		return
	}

	tripOID, err := primitive.ObjectIDFromHex(payload.TripID)
	if err != nil {
		fail("Invalid trip ID format")
		return
	}
	tripID := tripOID.Hex()

	// One room per session for its whole life.
	if c.tripID != "" && c.tripID != tripID {
		fail("Already joined a trip room")
		return
	}

	ctx, cancel := opCtx()
	trip, err := s.store.TripByID(ctx, tripOID)
	cancel()
	if err == store.ErrNotFound {
		fail("Trip not found")
		return
	}
	if err != nil {
		log.Printf("joinTrip lookup failed for %s: %v", c.ID, err)
		fail("Server error while joining trip")
		return
	}

	if !trip.HasAccess(c.UserID) {
		fail("Forbidden: you do not have access to this trip")
		return
	}

	s.hub.JoinRoom(c, tripID)
	s.hub.Send(c, Encode(EvtJoinedTrip, tripID))
	s.ack(c, env.Ack, tripID)

	// Presence bookkeeping never blocks the join: the connection is in the
	// room regardless of what happens below.
	if first := s.presence.AddConnection(tripID, c.UserID.Hex(), c.Username, c.ID); first {
		s.hub.Broadcast(tripID, Encode(EvtUserJoined, RoomUser{ID: c.UserID.Hex(), Username: c.Username}), c)
	}
	s.hub.Broadcast(tripID, Encode(EvtLiveUsersUpdate, s.presence.Snapshot(tripID)), nil)
}

// requireTrip rejects any mutation naming a trip this session has not
// joined. The trip was authorized at join time; the cached room id is the
// authority for every later event.
func (s *Server) requireTrip(c *Client, tripID, ackID string) bool {
	if c.tripID == "" || c.tripID != tripID {
		s.ackError(c, ackID, "Forbidden: trip not joined")
		if ackID == "" {
			s.sendError(c, "Forbidden: trip not joined")
		}
		return false
	}
	return true
}

func parseOID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

// --- Node events ---

func (s *Server) handleCreateNode(c *Client, env *Envelope) {
	var node models.Node
	if err := json.Unmarshal(env.Data, &node); err != nil {
		s.ackError(c, env.Ack, "Invalid node payload")
		return
	}
	if !s.requireTrip(c, node.TripID.Hex(), env.Ack) {
		return
	}

	// Model defaults, same as the persistence schema's.
	if node.Type == "" {
		node.Type = "location"
	}
	if node.DisplayType == "" {
		node.DisplayType = "canvas"
	}
	if node.Status == "" {
		node.Status = "idea"
	}

	ctx, cancel := opCtx()
	created, err := s.store.InsertNode(ctx, &node)
	cancel()
	if err != nil {
		s.ackError(c, env.Ack, err.Error())
		return
	}

	// Whole room including the sender: the canonical id exists only
	// post-insert.
	s.hub.Broadcast(c.tripID, Encode(EvtNodeCreated, created), nil)
	s.activity.Log(created.TripID, c.UserID, "CREATE_NODE", fmt.Sprintf("Added node '%s'", created.Name))
	s.ack(c, env.Ack, created)
}

func (s *Server) handleMoveNode(c *Client, env *Envelope) {
	var payload MoveNodePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Printf("moveNode bad payload from %s: %v", c.ID, err)
		return
	}
	if !s.requireTrip(c, payload.TripID, "") {
		return
	}
	nodeID, ok := parseOID(payload.NodeID)
	if !ok {
		return
	}

	ctx, cancel := opCtx()
	err := s.store.UpdateNodePosition(ctx, nodeID, payload.NewPosition)
	cancel()
	if err != nil {
		log.Printf("moveNode persist failed (%s): %v", payload.NodeID, err)
		return
	}

	// The mover already has optimistic local state; everyone else gets it.
	s.hub.Broadcast(c.tripID, Encode(EvtNodeMoved, NodeMovedPayload{
		NodeID:      payload.NodeID,
		NewPosition: payload.NewPosition,
	}), c)
}

func (s *Server) handleUpdateNodeDetails(c *Client, env *Envelope) {
	var payload UpdateNodeDetailsPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Printf("updateNodeDetails bad payload from %s: %v", c.ID, err)
		return
	}
	if !s.requireTrip(c, payload.TripID, "") {
		return
	}
	nodeID, ok := parseOID(payload.NodeID)
	if !ok {
		return
	}

	fields := bson.M{}
	for k, v := range payload.NewDetails {
		fields[k] = v
	}

	ctx, cancel := opCtx()
	updated, err := s.store.UpdateNodeFields(ctx, nodeID, fields)
	cancel()
	if err != nil {
		log.Printf("updateNodeDetails persist failed (%s): %v", payload.NodeID, err)
		return
	}

	s.hub.Broadcast(c.tripID, Encode(EvtNodeUpdated, updated), nil)
	s.activity.Log(updated.TripID, c.UserID, "UPDATE_NODE", fmt.Sprintf("Updated node '%s'", updated.Name))
}

func (s *Server) handleDeleteNode(c *Client, env *Envelope) {
	var payload DeleteNodePayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Printf("deleteNode bad payload from %s: %v", c.ID, err)
		return
	}
	if !s.requireTrip(c, payload.TripID, "") {
		return
	}
	nodeID, ok := parseOID(payload.NodeID)
	if !ok {
		return
	}
	tripOID, _ := parseOID(payload.TripID)

	ctx, cancel := opCtx()
	defer cancel()

	deleted, err := s.store.DeleteNode(ctx, nodeID)
	if err != nil && err != store.ErrNotFound {
		log.Printf("deleteNode persist failed (%s): %v", payload.NodeID, err)
		return
	}

	// Deleting a node orphans every edge touching it; take them along and
	// tell the room about each one.
	gone, err := s.store.DeleteConnectionsForNode(ctx, tripOID, nodeID)
	if err != nil {
		log.Printf("deleteNode cascade failed (%s): %v", payload.NodeID, err)
	}

	s.hub.Broadcast(c.tripID, Encode(EvtNodeDeleted, payload.NodeID), nil)
	for _, connID := range gone {
		s.hub.Broadcast(c.tripID, Encode(EvtConnectionDeleted, connID.Hex()), nil)
	}

	if deleted != nil {
		s.activity.Log(deleted.TripID, c.UserID, "DELETE_NODE", fmt.Sprintf("Removed node '%s'", deleted.Name))
	}
}

// --- Connection events ---

func (s *Server) handleCreateConnection(c *Client, env *Envelope) {
	var conn models.Connection
	if err := json.Unmarshal(env.Data, &conn); err != nil {
		log.Printf("createConnection bad payload from %s: %v", c.ID, err)
		return
	}
	if !s.requireTrip(c, conn.TripID.Hex(), env.Ack) {
		return
	}

	ctx, cancel := opCtx()
	created, err := s.store.InsertConnection(ctx, &conn)
	cancel()
	if err != nil {
		s.ackError(c, env.Ack, err.Error())
		return
	}

	s.hub.Broadcast(c.tripID, Encode(EvtConnectionCreated, created), nil)
	s.ack(c, env.Ack, created)
}

func (s *Server) handleDeleteConnection(c *Client, env *Envelope) {
	var payload DeleteConnectionPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Printf("deleteConnection bad payload from %s: %v", c.ID, err)
		return
	}
	if !s.requireTrip(c, payload.TripID, "") {
		return
	}
	connID, ok := parseOID(payload.ConnectionID)
	if !ok {
		return
	}
	tripOID, _ := parseOID(payload.TripID)

	ctx, cancel := opCtx()
	err := s.store.DeleteConnection(ctx, connID)
	cancel()
	if err != nil && err != store.ErrNotFound {
		log.Printf("deleteConnection persist failed (%s): %v", payload.ConnectionID, err)
		return
	}

	s.hub.Broadcast(c.tripID, Encode(EvtConnectionDeleted, payload.ConnectionID), nil)
	s.activity.Log(tripOID, c.UserID, "DELETE_CONNECTION", "Removed a connection")
}

// --- Task events ---

func (s *Server) handleCreateTask(c *Client, env *Envelope) {
	var payload CreateTaskPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		s.ackError(c, env.Ack, "Invalid task payload")
		return
	}
	if !s.requireTrip(c, payload.TripID, env.Ack) {
		return
	}
	tripOID, _ := parseOID(payload.TripID)
	nodeID, ok := parseOID(payload.NodeID)
	if !ok {
		s.ackError(c, env.Ack, "Invalid node ID format")
		return
	}

	// Assigned to the creator by default.
	creator := c.UserID
	task := &models.Task{
		TripID:     tripOID,
		NodeID:     nodeID,
		Text:       payload.Text,
		AssignedTo: &creator,
	}

	ctx, cancel := opCtx()
	created, err := s.store.InsertTask(ctx, task)
	cancel()
	if err != nil {
		s.ackError(c, env.Ack, err.Error())
		return
	}

	s.hub.Broadcast(c.tripID, Encode(EvtTaskCreated, created), nil)
	s.ack(c, env.Ack, created)
}

func (s *Server) handleUpdateTask(c *Client, env *Envelope) {
	var payload UpdateTaskPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Printf("updateTask bad payload from %s: %v", c.ID, err)
		return
	}
	if !s.requireTrip(c, payload.TripID, "") {
		return
	}
	taskID, ok := parseOID(payload.TaskID)
	if !ok {
		return
	}

	fields := bson.M{}
	for k, v := range payload.Updates {
		fields[k] = v
	}

	ctx, cancel := opCtx()
	updated, err := s.store.UpdateTaskFields(ctx, taskID, fields)
	cancel()
	if err != nil {
		log.Printf("updateTask persist failed (%s): %v", payload.TaskID, err)
		return
	}

	s.hub.Broadcast(c.tripID, Encode(EvtTaskUpdated, updated), nil)
}

func (s *Server) handleDeleteTask(c *Client, env *Envelope) {
	var payload DeleteTaskPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Printf("deleteTask bad payload from %s: %v", c.ID, err)
		return
	}
	if !s.requireTrip(c, payload.TripID, "") {
		return
	}
	taskID, ok := parseOID(payload.TaskID)
	if !ok {
		return
	}

	ctx, cancel := opCtx()
	err := s.store.DeleteTask(ctx, taskID)
	cancel()
	if err != nil && err != store.ErrNotFound {
		log.Printf("deleteTask persist failed (%s): %v", payload.TaskID, err)
		return
	}

	s.hub.Broadcast(c.tripID, Encode(EvtTaskDeleted, TaskDeletedPayload{TaskID: payload.TaskID}), nil)
}

// --- Comment events ---

func (s *Server) handleCreateComment(c *Client, env *Envelope) {
	var payload CreateCommentPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		s.ackError(c, env.Ack, "Invalid comment payload")
		return
	}
	if !s.requireTrip(c, payload.TripID, env.Ack) {
		return
	}
	tripOID, _ := parseOID(payload.TripID)
	nodeID, ok := parseOID(payload.NodeID)
	if !ok {
		s.ackError(c, env.Ack, "Invalid node ID format")
		return
	}

	comment := &models.Comment{
		TripID: tripOID,
		NodeID: nodeID,
		UserID: c.UserID,
		Text:   payload.Text,
	}

	ctx, cancel := opCtx()
	created, err := s.store.InsertComment(ctx, comment)
	cancel()
	if err != nil {
		s.ackError(c, env.Ack, err.Error())
		return
	}

	// Clients render the author's name straight off the payload, so it goes
	// out populated.
	populated := created.Populate(models.UserRef{ID: c.UserID, Username: c.Username})
	s.hub.Broadcast(c.tripID, Encode(EvtCommentCreated, populated), nil)
	s.ack(c, env.Ack, populated)
}

func (s *Server) handleDeleteComment(c *Client, env *Envelope) {
	var payload DeleteCommentPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Printf("deleteComment bad payload from %s: %v", c.ID, err)
		return
	}
	if !s.requireTrip(c, payload.TripID, "") {
		return
	}
	commentID, ok := parseOID(payload.CommentID)
	if !ok {
		return
	}

	ctx, cancel := opCtx()
	defer cancel()

	comment, err := s.store.CommentByID(ctx, commentID)
	if err != nil {
		if err != store.ErrNotFound {
			log.Printf("deleteComment lookup failed (%s): %v", payload.CommentID, err)
		}
		return
	}
	if comment.UserID != c.UserID {
		s.sendError(c, "Forbidden: only the author can delete a comment")
		return
	}

	if err := s.store.DeleteComment(ctx, commentID); err != nil && err != store.ErrNotFound {
		log.Printf("deleteComment persist failed (%s): %v", payload.CommentID, err)
		return
	}

	s.hub.Broadcast(c.tripID, Encode(EvtCommentDeleted, payload.CommentID), nil)
}

// --- Ephemeral events ---

func (s *Server) handleUpdateCursor(c *Client, env *Envelope) {
	var payload CursorPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return
	}
	if c.tripID == "" || c.tripID != payload.TripID {
		return
	}

	// Highest-frequency event in the protocol; never touches persistence.
	s.hub.Broadcast(c.tripID, Encode(EvtCursorMoved, CursorMovedPayload{
		UserID:   c.UserID.Hex(),
		Position: payload.Position,
	}), c)
}

// --- Voice signaling ---

func (s *Server) handleWebrtcSignal(c *Client, env *Envelope) {
	var payload SignalPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		log.Printf("webrtcSignal bad envelope from %s: %v", c.ID, err)
		return
	}

	// The signal blob stays opaque; only the routing envelope is ours.
	out := Encode(EvtWebrtcSignal, SignalOutPayload{
		From:     c.UserID.Hex(),
		Username: c.Username,
		Signal:   payload.Signal,
	})

	// No live connections for the target means a silent drop. This channel
	// is real-time only: no retry, no queueing.
	s.hub.SendToUser(payload.To, out)
}
