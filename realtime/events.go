package realtime

import (
	"encoding/json"
	"log"

	"tripweave/models"
)

// Event names, client → server.
const (
	EvtJoinTrip          = "joinTrip"
	EvtCreateNode        = "createNode"
	EvtMoveNode          = "moveNode"
	EvtUpdateNodeDetails = "updateNodeDetails"
	EvtDeleteNode        = "deleteNode"
	EvtCreateConnection  = "createConnection"
	EvtDeleteConnection  = "deleteConnection"
	EvtCreateTask        = "createTask"
	EvtUpdateTask        = "updateTask"
	EvtDeleteTask        = "deleteTask"
	EvtCreateComment     = "createComment"
	EvtDeleteComment     = "deleteComment"
	EvtUpdateCursor      = "updateCursor"
	EvtWebrtcSignal      = "webrtcSignal"
)

// Event names, server → client.
const (
	EvtAck               = "ack"
	EvtError             = "error"
	EvtJoinedTrip        = "joinedTrip"
	EvtLiveUsersUpdate   = "liveUsersUpdate"
	EvtUserJoined        = "userJoined"
	EvtUserLeft          = "userLeft"
	EvtNodeCreated       = "nodeCreated"
	EvtNodeMoved         = "nodeMoved"
	EvtNodeUpdated       = "nodeUpdated"
	EvtNodeDeleted       = "nodeDeleted"
	EvtConnectionCreated = "connectionCreated"
	EvtConnectionDeleted = "connectionDeleted"
	EvtTaskCreated       = "taskCreated"
	EvtTaskUpdated       = "taskUpdated"
	EvtTaskDeleted       = "taskDeleted"
	EvtCommentCreated    = "commentCreated"
	EvtCommentDeleted    = "commentDeleted"
	EvtCursorMoved       = "cursorMoved"
)

// Envelope is the single frame shape on the wire, both directions. Ack
// carries a client-chosen correlation id when the sender wants a direct
// reply; the server answers on the "ack" event with the same id.
type Envelope struct {
	Event string          `json:"event"`
	Ack   string          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds an outbound frame. Marshal failures are programmer errors on
// our own types; they are logged and yield nil, which senders skip.
func Encode(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Printf("encode %s: %v", event, err)
		return nil
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		log.Printf("encode %s envelope: %v", event, err)
		return nil
	}
	return frame
}

// Inbound payloads. Ids stay strings until the handler validates them.

type JoinTripPayload struct {
	TripID string `json:"tripId"`
}

type MoveNodePayload struct {
	TripID      string          `json:"tripId"`
	NodeID      string          `json:"nodeId"`
	NewPosition models.Position `json:"newPosition"`
}

type UpdateNodeDetailsPayload struct {
	TripID     string         `json:"tripId"`
	NodeID     string         `json:"nodeId"`
	NewDetails map[string]any `json:"newDetails"`
}

type DeleteNodePayload struct {
	TripID string `json:"tripId"`
	NodeID string `json:"nodeId"`
}

type DeleteConnectionPayload struct {
	TripID       string `json:"tripId"`
	ConnectionID string `json:"connectionId"`
}

type CreateTaskPayload struct {
	TripID string `json:"tripId"`
	NodeID string `json:"nodeId"`
	Text   string `json:"text"`
}

type UpdateTaskPayload struct {
	TripID  string         `json:"tripId"`
	TaskID  string         `json:"taskId"`
	Updates map[string]any `json:"updates"`
}

type DeleteTaskPayload struct {
	TripID string `json:"tripId"`
	TaskID string `json:"taskId"`
}

type CreateCommentPayload struct {
	TripID string `json:"tripId"`
	NodeID string `json:"nodeId"`
	Text   string `json:"text"`
}

type DeleteCommentPayload struct {
	TripID    string `json:"tripId"`
	CommentID string `json:"commentId"`
}

type CursorPayload struct {
	TripID   string          `json:"tripId"`
	Position models.Position `json:"position"`
}

// SignalPayload addresses an opaque negotiation blob to one user. The blob
// is never parsed past this envelope.
type SignalPayload struct {
	To     string          `json:"to"`
	Signal json.RawMessage `json:"signal"`
}

// Outbound payloads.

type ErrorPayload struct {
	Message string `json:"message"`
}

type NodeMovedPayload struct {
	NodeID      string          `json:"nodeId"`
	NewPosition models.Position `json:"newPosition"`
}

type TaskDeletedPayload struct {
	TaskID string `json:"taskId"`
}

type CursorMovedPayload struct {
	UserID   string          `json:"userId"`
	Position models.Position `json:"position"`
}

type SignalOutPayload struct {
	From     string          `json:"from"`
	Username string          `json:"username"`
	Signal   json.RawMessage `json:"signal"`
}
