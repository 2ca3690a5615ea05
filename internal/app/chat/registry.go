package chat

import (
	"slices"

	"github.com/samber/lo"

	"livechat/internal/app/user"
)

// Peer is a connection the broadcaster can deliver frames to.
type Peer interface {
	// ID is the connection identifier, unique per socket.
	ID() string

	// Deliver queues an encoded frame without blocking.
	Deliver(frame []byte) error

	// Close ends the connection with a WebSocket close code.
	Close(code int, reason string)
}

type entry struct {
	peer     Peer
	snapshot user.Snapshot
}

// Registry maps each admitted user to its current connection and presence
// snapshot, in admission order. At most one entry exists per user id.
//
// Registry is not safe for concurrent use; the hub goroutine owns it.
type Registry struct {
	order   []string
	entries map[string]*entry
	byConn  map[string]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		byConn:  make(map[string]string),
	}
}

// Admit inserts the entry for snapshot.ID, or replaces the connection of an
// existing one in place. It returns the replaced peer and true on replacement.
func (r *Registry) Admit(peer Peer, snapshot user.Snapshot) (Peer, bool) {
	if existing, ok := r.entries[snapshot.ID]; ok {
		replaced := existing.peer
		delete(r.byConn, replaced.ID())

		existing.peer = peer
		existing.snapshot = snapshot
		r.byConn[peer.ID()] = snapshot.ID
		return replaced, true
	}

	r.entries[snapshot.ID] = &entry{peer: peer, snapshot: snapshot}
	r.byConn[peer.ID()] = snapshot.ID
	r.order = append(r.order, snapshot.ID)
	return nil, false
}

// Evict removes the entry owned by connID. A connection that was replaced, or
// never admitted, is not the owner of any entry and evicting it is a no-op.
func (r *Registry) Evict(connID string) (user.Snapshot, bool) {
	userID, ok := r.byConn[connID]
	if !ok {
		return user.Snapshot{}, false
	}

	e := r.entries[userID]
	delete(r.byConn, connID)
	delete(r.entries, userID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == userID })

	return e.snapshot, true
}

// List returns the snapshots of all entries in admission order.
func (r *Registry) List() []user.Snapshot {
	return lo.Map(r.order, func(id string, _ int) user.Snapshot {
		return r.entries[id].snapshot
	})
}

// Peers returns the connections of all entries in admission order.
func (r *Registry) Peers() []Peer {
	return lo.Map(r.order, func(id string, _ int) Peer {
		return r.entries[id].peer
	})
}

// Lookup returns the current connection and snapshot of a user.
func (r *Registry) Lookup(userID string) (Peer, user.Snapshot, bool) {
	e, ok := r.entries[userID]
	if !ok {
		return nil, user.Snapshot{}, false
	}
	return e.peer, e.snapshot, true
}

// LookupConn returns the snapshot admitted for connID, if connID is current.
func (r *Registry) LookupConn(connID string) (user.Snapshot, bool) {
	userID, ok := r.byConn[connID]
	if !ok {
		return user.Snapshot{}, false
	}
	return r.entries[userID].snapshot, true
}

// Update applies fn to a user's snapshot. The user id cannot be changed.
func (r *Registry) Update(userID string, fn func(*user.Snapshot)) bool {
	e, ok := r.entries[userID]
	if !ok {
		return false
	}

	fn(&e.snapshot)
	e.snapshot.ID = userID
	return true
}

func (r *Registry) Len() int {
	return len(r.order)
}
