package client

import (
	"encoding/json"
	"testing"

	"tripweave/models"
	"tripweave/realtime"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestStateNodeLifecycle(t *testing.T) {
	s := NewTripState()
	id := primitive.NewObjectID()

	s.applyNodeUpsert(raw(t, models.Node{
		ID:       id,
		Name:     "Cafe",
		Position: models.Position{X: 1, Y: 2},
	}))
	if s.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", s.NodeCount())
	}

	// nodeUpdated reuses the upsert path and replaces the whole record.
	s.applyNodeUpsert(raw(t, models.Node{ID: id, Name: "Cafe Central"}))
	node, ok := s.Node(id.Hex())
	if !ok || node.Name != "Cafe Central" {
		t.Fatalf("expected updated node, got %+v ok=%v", node, ok)
	}

	s.applyNodeMoved(raw(t, realtime.NodeMovedPayload{
		NodeID:      id.Hex(),
		NewPosition: models.Position{X: 30, Y: 40},
	}))
	node, _ = s.Node(id.Hex())
	if node.Position.X != 30 || node.Position.Y != 40 {
		t.Fatalf("expected moved position, got %+v", node.Position)
	}

	s.applyNodeDeleted(raw(t, id.Hex()))
	if s.NodeCount() != 0 {
		t.Fatalf("expected empty canvas, got %d nodes", s.NodeCount())
	}
}

func TestStateMoveUnknownNodeIsNoop(t *testing.T) {
	s := NewTripState()
	s.applyNodeMoved(raw(t, realtime.NodeMovedPayload{
		NodeID:      primitive.NewObjectID().Hex(),
		NewPosition: models.Position{X: 5, Y: 5},
	}))
	if s.NodeCount() != 0 {
		t.Fatal("moving an unknown node must not create one")
	}
}

func TestStateConnectionLifecycle(t *testing.T) {
	s := NewTripState()
	id := primitive.NewObjectID()

	s.applyConnectionCreated(raw(t, models.Connection{
		ID:         id,
		FromNodeID: primitive.NewObjectID(),
		ToNodeID:   primitive.NewObjectID(),
	}))
	if s.ConnectionCount() != 1 {
		t.Fatalf("expected 1 connection, got %d", s.ConnectionCount())
	}

	s.applyConnectionDeleted(raw(t, id.Hex()))
	if s.ConnectionCount() != 0 {
		t.Fatalf("expected no connections, got %d", s.ConnectionCount())
	}
}

func TestStateTaskLifecycle(t *testing.T) {
	s := NewTripState()
	id := primitive.NewObjectID()

	s.applyTaskUpsert(raw(t, models.Task{ID: id, Text: "book table"}))
	s.applyTaskUpsert(raw(t, models.Task{ID: id, Text: "book table", IsCompleted: true}))

	s.mu.Lock()
	task := s.Tasks[id.Hex()]
	s.mu.Unlock()
	if task == nil || !task.IsCompleted {
		t.Fatalf("expected completed task, got %+v", task)
	}

	s.applyTaskDeleted(raw(t, realtime.TaskDeletedPayload{TaskID: id.Hex()}))
	s.mu.Lock()
	n := len(s.Tasks)
	s.mu.Unlock()
	if n != 0 {
		t.Fatalf("expected no tasks, got %d", n)
	}
}

func TestStateCommentsKeepOrder(t *testing.T) {
	s := NewTripState()
	first := primitive.NewObjectID()
	second := primitive.NewObjectID()

	s.applyCommentCreated(raw(t, models.CommentPopulated{ID: first, Text: "first"}))
	s.applyCommentCreated(raw(t, models.CommentPopulated{ID: second, Text: "second"}))

	s.mu.Lock()
	got := append([]models.CommentPopulated(nil), s.Comments...)
	s.mu.Unlock()
	if len(got) != 2 || got[0].Text != "first" || got[1].Text != "second" {
		t.Fatalf("comment order wrong: %+v", got)
	}

	s.applyCommentDeleted(raw(t, first.Hex()))
	s.mu.Lock()
	got = append([]models.CommentPopulated(nil), s.Comments...)
	s.mu.Unlock()
	if len(got) != 1 || got[0].ID != second {
		t.Fatalf("expected only the second comment, got %+v", got)
	}
}

func TestStateRosterAndCursors(t *testing.T) {
	s := NewTripState()

	s.applyLiveUsers(raw(t, []realtime.RoomUser{
		{ID: "u1", Username: "alice"},
		{ID: "u2", Username: "bob"},
	}))
	if live := s.LiveUsers(); len(live) != 2 || live[0].Username != "alice" {
		t.Fatalf("roster wrong: %+v", live)
	}

	s.applyCursorMoved(raw(t, realtime.CursorMovedPayload{
		UserID:   "u2",
		Position: models.Position{X: 9, Y: 9},
	}))
	s.mu.Lock()
	_, tracked := s.Cursors["u2"]
	s.mu.Unlock()
	if !tracked {
		t.Fatal("expected cursor tracked for u2")
	}

	// A departure wipes the departed peer's cursor.
	s.applyUserLeft(raw(t, realtime.RoomUser{ID: "u2", Username: "bob"}))
	s.mu.Lock()
	_, tracked = s.Cursors["u2"]
	s.mu.Unlock()
	if tracked {
		t.Fatal("expected stale cursor dropped on userLeft")
	}

	// The roster itself only changes on the next liveUsersUpdate.
	s.applyLiveUsers(raw(t, []realtime.RoomUser{{ID: "u1", Username: "alice"}}))
	if live := s.LiveUsers(); len(live) != 1 {
		t.Fatalf("expected 1 live user, got %+v", live)
	}
}

func TestStateIgnoresMalformedPayloads(t *testing.T) {
	s := NewTripState()
	s.applyNodeUpsert(json.RawMessage(`{"_id": 42}`))
	s.applyNodeDeleted(json.RawMessage(`{"not":"a string"}`))
	s.applyLiveUsers(json.RawMessage(`"not an array"`))
	if s.NodeCount() != 0 || len(s.LiveUsers()) != 0 {
		t.Fatal("malformed payloads must leave state untouched")
	}
}
