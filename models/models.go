package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the account record. PasswordHash never leaves the server.
type User struct {
	ID           primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Username     string             `json:"username" bson:"username"`
	Email        string             `json:"email" bson:"email"`
	PasswordHash string             `json:"-" bson:"passwordHash"`
	CreatedAt    time.Time          `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// UserRef is the populated author shape embedded in broadcast payloads.
type UserRef struct {
	ID       primitive.ObjectID `json:"_id" bson:"_id"`
	Username string             `json:"username" bson:"username"`
}

type Collaborator struct {
	UserID primitive.ObjectID `json:"userId" bson:"userId"`
	Role   string             `json:"role" bson:"role"` // editor | viewer
}

type Trip struct {
	ID            primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Owner         primitive.ObjectID `json:"owner" bson:"owner"`
	Collaborators []Collaborator     `json:"collaborators" bson:"collaborators"`
	ShareEnabled  bool               `json:"shareEnabled" bson:"shareEnabled"`
	SharePassword string             `json:"-" bson:"sharePassword,omitempty"`
	CreatedAt     time.Time          `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt     time.Time          `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// HasAccess reports whether userID is the owner or any collaborator.
func (t *Trip) HasAccess(userID primitive.ObjectID) bool {
	if t.Owner == userID {
		return true
	}
	for _, c := range t.Collaborators {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

type NodeTiming struct {
	Arrival   *time.Time `json:"arrival,omitempty" bson:"arrival,omitempty"`
	Departure *time.Time `json:"departure,omitempty" bson:"departure,omitempty"`
}

// Node is a single canvas item: a location or a free-form note. The Details
// bag is schemaless on purpose; clients own its shape (address, place ids,
// coordinates and whatever the canvas grows next).
type Node struct {
	ID          primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	TripID      primitive.ObjectID `json:"tripId" bson:"tripId"`
	Name        string             `json:"name" bson:"name"`
	Type        string             `json:"type" bson:"type"`               // location | note
	DisplayType string             `json:"displayType" bson:"displayType"` // canvas | bin
	Position    Position           `json:"position" bson:"position"`
	Details     map[string]any     `json:"details,omitempty" bson:"details,omitempty"`
	Timing      *NodeTiming        `json:"timing,omitempty" bson:"timing,omitempty"`
	Cost        float64            `json:"cost" bson:"cost"`
	Status      string             `json:"status" bson:"status"` // idea | confirmed | booked
	CreatedAt   time.Time          `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Connection is a directed edge between two nodes of the same trip.
type Connection struct {
	ID           primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	TripID       primitive.ObjectID `json:"tripId" bson:"tripId"`
	FromNodeID   primitive.ObjectID `json:"fromNodeId" bson:"fromNodeId"`
	ToNodeID     primitive.ObjectID `json:"toNodeId" bson:"toNodeId"`
	SourceHandle string             `json:"sourceHandle,omitempty" bson:"sourceHandle,omitempty"`
	TargetHandle string             `json:"targetHandle,omitempty" bson:"targetHandle,omitempty"`
}

type Task struct {
	ID          primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	TripID      primitive.ObjectID  `json:"tripId" bson:"tripId"`
	NodeID      primitive.ObjectID  `json:"nodeId" bson:"nodeId"`
	Text        string              `json:"text" bson:"text"`
	IsCompleted bool                `json:"isCompleted" bson:"isCompleted"`
	AssignedTo  *primitive.ObjectID `json:"assignedTo,omitempty" bson:"assignedTo,omitempty"`
	CreatedAt   time.Time           `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt   time.Time           `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

type Comment struct {
	ID        primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	TripID    primitive.ObjectID `json:"tripId" bson:"tripId"`
	NodeID    primitive.ObjectID `json:"nodeId" bson:"nodeId"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Text      string             `json:"text" bson:"text"`
	CreatedAt time.Time          `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// CommentPopulated is the broadcast shape of a comment: userId carries the
// resolved author instead of a bare id, since clients render the name
// directly.
type CommentPopulated struct {
	ID        primitive.ObjectID `json:"_id"`
	TripID    primitive.ObjectID `json:"tripId"`
	NodeID    primitive.ObjectID `json:"nodeId"`
	User      UserRef            `json:"userId"`
	Text      string             `json:"text"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Populate pairs a comment with its author for broadcasting.
func (c *Comment) Populate(author UserRef) CommentPopulated {
	return CommentPopulated{
		ID:        c.ID,
		TripID:    c.TripID,
		NodeID:    c.NodeID,
		User:      author,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
}

// Activity is an append-only audit record. Never updated or deleted.
type Activity struct {
	ID        primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	TripID    primitive.ObjectID `json:"tripId" bson:"tripId"`
	UserID    primitive.ObjectID `json:"userId" bson:"userId"`
	Action    string             `json:"action" bson:"action"`
	Details   string             `json:"details" bson:"details"`
	Timestamp time.Time          `json:"timestamp" bson:"timestamp"`
}

// ActivityPopulated is the read shape with the actor's username resolved.
type ActivityPopulated struct {
	Activity `bson:",inline"`
	Username string `json:"username" bson:"username"`
}
