package realtime

import (
	"fmt"
	"testing"
)

func TestRegistryFirstAndLastConnection(t *testing.T) {
	reg := NewRegistry()

	if first := reg.AddConnection("trip1", "u1", "alice", "c1"); !first {
		t.Fatal("expected first connection to report first=true")
	}
	// Second tab for the same user: no new roster entry.
	if first := reg.AddConnection("trip1", "u1", "alice", "c2"); first {
		t.Fatal("second tab must not report first=true")
	}
	if got := len(reg.Snapshot("trip1")); got != 1 {
		t.Fatalf("expected 1 roster entry, got %d", got)
	}

	// Closing one of two tabs keeps the user present.
	if last := reg.RemoveConnection("trip1", "u1", "c1"); last {
		t.Fatal("user still has a live tab, last must be false")
	}
	if got := len(reg.Snapshot("trip1")); got != 1 {
		t.Fatalf("expected user still present, got %d entries", got)
	}

	// Closing the last tab removes the user and the room.
	if last := reg.RemoveConnection("trip1", "u1", "c2"); !last {
		t.Fatal("closing the last tab must report last=true")
	}
	if got := len(reg.Snapshot("trip1")); got != 0 {
		t.Fatalf("expected empty roster, got %d entries", got)
	}
}

func TestRegistrySnapshotConvergence(t *testing.T) {
	reg := NewRegistry()

	// N connections across M users with arbitrary add/remove interleaving.
	for i := 0; i < 3; i++ {
		user := fmt.Sprintf("u%d", i)
		for j := 0; j < 4; j++ {
			reg.AddConnection("trip1", user, "name-"+user, fmt.Sprintf("%s-c%d", user, j))
		}
	}
	// u0 loses everything, u1 loses some, u2 untouched.
	for j := 0; j < 4; j++ {
		reg.RemoveConnection("trip1", "u0", fmt.Sprintf("u0-c%d", j))
	}
	reg.RemoveConnection("trip1", "u1", "u1-c0")
	reg.RemoveConnection("trip1", "u1", "u1-c2")

	snap := reg.Snapshot("trip1")
	if len(snap) != 2 {
		t.Fatalf("expected exactly u1 and u2, got %v", snap)
	}
	if snap[0].ID != "u1" || snap[1].ID != "u2" {
		t.Fatalf("expected ordered [u1 u2], got %v", snap)
	}
	for _, u := range snap {
		if u.Username != "name-"+u.ID {
			t.Fatalf("username lost for %s: %q", u.ID, u.Username)
		}
	}
}

func TestRegistryIdempotentAdd(t *testing.T) {
	reg := NewRegistry()

	reg.AddConnection("trip1", "u1", "alice", "c1")
	// Re-join with the same connection id must not duplicate anything.
	if first := reg.AddConnection("trip1", "u1", "alice", "c1"); first {
		t.Fatal("re-adding the same connection must not report first=true")
	}
	if got := len(reg.Snapshot("trip1")); got != 1 {
		t.Fatalf("expected 1 roster entry, got %d", got)
	}
	if last := reg.RemoveConnection("trip1", "u1", "c1"); !last {
		t.Fatal("single connection removal must report last=true")
	}
}

func TestRegistryIsolatesRooms(t *testing.T) {
	reg := NewRegistry()

	reg.AddConnection("trip1", "u1", "alice", "c1")
	reg.AddConnection("trip2", "u2", "bob", "c2")

	if got := len(reg.Snapshot("trip1")); got != 1 {
		t.Fatalf("trip1 roster wrong: %d", got)
	}
	if snap := reg.Snapshot("trip2"); len(snap) != 1 || snap[0].Username != "bob" {
		t.Fatalf("trip2 roster wrong: %v", snap)
	}
	if got := len(reg.Snapshot("trip3")); got != 0 {
		t.Fatalf("unknown room must be empty, got %d", got)
	}
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	reg := NewRegistry()

	if last := reg.RemoveConnection("missing", "u1", "c1"); last {
		t.Fatal("removing from an unknown room must be a no-op")
	}
	reg.AddConnection("trip1", "u1", "alice", "c1")
	if last := reg.RemoveConnection("trip1", "u2", "cX"); last {
		t.Fatal("removing an unknown user must be a no-op")
	}
}
