package realtime

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestClient(userID primitive.ObjectID, name string) *Client {
	return &Client{
		ID:       name,
		UserID:   userID,
		Username: name,
		send:     make(chan []byte, 10),
	}
}

func expectMessage(t *testing.T, c *Client, want string) {
	t.Helper()
	select {
	case got := <-c.send:
		if string(got) != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for message on %s", c.ID)
	}
}

func expectNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case got := <-c.send:
		t.Fatalf("unexpected message on %s: %s", c.ID, got)
	default:
	}
}

func TestHubRoomBroadcast(t *testing.T) {
	hub := NewHub()
	a := newTestClient(primitive.NewObjectID(), "a")
	b := newTestClient(primitive.NewObjectID(), "b")
	c := newTestClient(primitive.NewObjectID(), "c")

	hub.Register(a)
	hub.Register(b)
	hub.Register(c)
	hub.JoinRoom(a, "trip1")
	hub.JoinRoom(b, "trip1")
	hub.JoinRoom(c, "trip2")

	hub.Broadcast("trip1", []byte("hello"), nil)
	expectMessage(t, a, "hello")
	expectMessage(t, b, "hello")
	expectNoMessage(t, c)
}

func TestHubBroadcastExcludesSender(t *testing.T) {
	hub := NewHub()
	a := newTestClient(primitive.NewObjectID(), "a")
	b := newTestClient(primitive.NewObjectID(), "b")

	hub.Register(a)
	hub.Register(b)
	hub.JoinRoom(a, "trip1")
	hub.JoinRoom(b, "trip1")

	hub.Broadcast("trip1", []byte("moved"), a)
	expectMessage(t, b, "moved")
	expectNoMessage(t, a)
}

func TestHubSendToUserHitsEveryTab(t *testing.T) {
	hub := NewHub()
	userID := primitive.NewObjectID()
	tab1 := newTestClient(userID, "tab1")
	tab2 := newTestClient(userID, "tab2")
	other := newTestClient(primitive.NewObjectID(), "other")

	hub.Register(tab1)
	hub.Register(tab2)
	hub.Register(other)

	if !hub.SendToUser(userID.Hex(), []byte("ring")) {
		t.Fatal("expected delivery to a connected user")
	}
	expectMessage(t, tab1, "ring")
	expectMessage(t, tab2, "ring")
	expectNoMessage(t, other)
}

func TestHubSendToAbsentUser(t *testing.T) {
	hub := NewHub()
	if hub.SendToUser(primitive.NewObjectID().Hex(), []byte("ring")) {
		t.Fatal("expected silent no-op for a user with no connections")
	}
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	a := newTestClient(primitive.NewObjectID(), "a")

	hub.Register(a)
	hub.JoinRoom(a, "trip1")
	hub.Unregister(a)

	hub.Broadcast("trip1", []byte("late"), nil)
	if hub.SendToUser(a.UserID.Hex(), []byte("late")) {
		t.Fatal("expected user index cleaned up")
	}

	// send channel must be closed exactly once, double unregister is safe
	hub.Unregister(a)
	if _, ok := <-a.send; ok {
		t.Fatal("expected closed send channel")
	}
}

func TestHubJoinRoomIdempotent(t *testing.T) {
	hub := NewHub()
	a := newTestClient(primitive.NewObjectID(), "a")

	hub.Register(a)
	hub.JoinRoom(a, "trip1")
	hub.JoinRoom(a, "trip1")

	if a.TripID() != "trip1" {
		t.Fatalf("expected room pinned on client, got %q", a.TripID())
	}
	hub.Broadcast("trip1", []byte("once"), nil)
	expectMessage(t, a, "once")
	expectNoMessage(t, a)
}

func TestHubDeliveryAfterDropIsNoop(t *testing.T) {
	hub := NewHub()
	a := &Client{
		ID:       "a",
		UserID:   primitive.NewObjectID(),
		Username: "a",
		send:     make(chan []byte, 1),
	}
	b := newTestClient(primitive.NewObjectID(), "b")

	hub.Register(a)
	hub.Register(b)
	hub.JoinRoom(a, "trip1")
	hub.JoinRoom(b, "trip1")

	// Fill a's buffer so the next broadcast overflows it and drops him.
	if !a.enqueue([]byte("fill")) {
		t.Fatal("expected room in the buffer")
	}
	hub.Broadcast("trip1", []byte("overflow"), nil)

	// a's send channel is closed now. Goroutines still holding the client,
	// whether a direct send, a stale member snapshot or the user index, must
	// treat delivery as a no-op rather than panic.
	hub.Send(a, []byte("late"))
	hub.Broadcast("trip1", []byte("late"), nil)
	hub.SendToUser(a.UserID.Hex(), []byte("late"))

	expectMessage(t, b, "overflow")
	expectMessage(t, b, "late")

	// Nothing past the pre-drop frame ever landed on a.
	if got := <-a.send; string(got) != "fill" {
		t.Fatalf("expected the buffered frame, got %s", got)
	}
	if extra, ok := <-a.send; ok {
		t.Fatalf("expected closed channel after the drop, got %s", extra)
	}
}
