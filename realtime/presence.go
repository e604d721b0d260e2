package realtime

import (
	"sort"
	"sync"
)

// RoomUser is one entry of the live roster, shaped for the wire.
type RoomUser struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

type presenceEntry struct {
	username string
	conns    map[string]bool
}

// Registry tracks which users have at least one live connection per trip
// room. A user with three tabs open is one roster entry until the last tab
// closes. Injected into the realtime server; holds no global state.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]map[string]*presenceEntry // tripID -> userID -> entry
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[string]*presenceEntry)}
}

// AddConnection records connID for (tripID, userID) and reports whether
// this is the user's first live connection in the room.
func (r *Registry) AddConnection(tripID, userID, username, connID string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[tripID]
	if room == nil {
		room = make(map[string]*presenceEntry)
		r.rooms[tripID] = room
	}

	entry := room[userID]
	if entry == nil {
		entry = &presenceEntry{username: username, conns: make(map[string]bool)}
		room[userID] = entry
		first = true
	}
	entry.conns[connID] = true
	return first
}

// RemoveConnection drops connID and reports whether that was the user's
// last connection in the room. Empty rooms are garbage-collected.
func (r *Registry) RemoveConnection(tripID, userID, connID string) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[tripID]
	if room == nil {
		return false
	}
	entry := room[userID]
	if entry == nil {
		return false
	}

	delete(entry.conns, connID)
	if len(entry.conns) == 0 {
		delete(room, userID)
		last = true
	}
	if len(room) == 0 {
		delete(r.rooms, tripID)
	}
	return last
}

// Snapshot returns the room's full roster, ordered by user id so every
// broadcast of the same membership is identical.
func (r *Registry) Snapshot(tripID string) []RoomUser {
	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[tripID]
	users := make([]RoomUser, 0, len(room))
	for id, entry := range room {
		users = append(users, RoomUser{ID: id, Username: entry.username})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}
