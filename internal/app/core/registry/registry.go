// internal/app/core/registry/registry.go

// Package registry tracks live client connections and routes messages to
// them by recipient or by room. It knows nothing about websockets or
// pickup semantics: connections are anything that satisfies Conn, rooms
// are opaque strings, and delivery is best effort.
package registry

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Message is one unit of outbound traffic, serialized as JSON on the wire.
type Message struct {
	Type    string         `json:"type"`
	Room    string         `json:"room,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Conn is a live client connection. Send must be safe for concurrent use;
// the registry fans out broadcasts from multiple goroutines.
type Conn interface {
	ID() string
	Send(ctx context.Context, msg Message) error
}

type entry struct {
	conn        Conn
	recipientID string
	rooms       map[string]struct{}
}

// Registry is an in-memory index of live connections. All state is local
// to the process; a connection that drops simply disappears from the maps
// and future sends to it are skipped.
type Registry struct {
	log *zap.Logger

	mu          sync.RWMutex
	byConn      map[string]*entry              // conn id -> entry
	byRecipient map[string]map[string]struct{} // recipient id -> conn ids
	byRoom      map[string]map[string]struct{} // room -> conn ids
}

func New(log *zap.Logger) *Registry {
	return &Registry{
		log:         log,
		byConn:      make(map[string]*entry),
		byRecipient: make(map[string]map[string]struct{}),
		byRoom:      make(map[string]map[string]struct{}),
	}
}

// Connect registers a connection for a recipient. A recipient may hold
// several connections at once (phone plus tablet); each gets messages
// independently.
func (r *Registry) Connect(recipientID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byConn[c.ID()] = &entry{conn: c, recipientID: recipientID, rooms: make(map[string]struct{})}
	if r.byRecipient[recipientID] == nil {
		r.byRecipient[recipientID] = make(map[string]struct{})
	}
	r.byRecipient[recipientID][c.ID()] = struct{}{}
}

// Disconnect removes a connection from every index. Safe to call twice.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(r.byConn, connID)

	if conns := r.byRecipient[e.recipientID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byRecipient, e.recipientID)
		}
	}
	for room := range e.rooms {
		if conns := r.byRoom[room]; conns != nil {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(r.byRoom, room)
			}
		}
	}
}

// Join subscribes a connection to a room. Unknown connections are ignored;
// the client may have dropped between the route handler and the join.
func (r *Registry) Join(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byConn[connID]
	if !ok {
		return
	}
	e.rooms[room] = struct{}{}
	if r.byRoom[room] == nil {
		r.byRoom[room] = make(map[string]struct{})
	}
	r.byRoom[room][connID] = struct{}{}
}

// Leave unsubscribes a connection from a room.
func (r *Registry) Leave(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byConn[connID]
	if !ok {
		return
	}
	delete(e.rooms, room)
	if conns := r.byRoom[room]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(r.byRoom, room)
		}
	}
}

// SendToRecipient delivers msg to every connection the recipient holds.
// Returns the number of connections reached. Zero is not an error — the
// recipient may simply be offline.
func (r *Registry) SendToRecipient(ctx context.Context, recipientID string, msg Message) int {
	return r.fanOut(ctx, r.snapshotRecipient(recipientID), msg)
}

// BroadcastToRoom delivers msg to every connection subscribed to room.
func (r *Registry) BroadcastToRoom(ctx context.Context, room string, msg Message) int {
	msg.Room = room
	return r.fanOut(ctx, r.snapshotRoom(room), msg)
}

// RecipientOnline reports whether the recipient holds at least one
// connection.
func (r *Registry) RecipientOnline(recipientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRecipient[recipientID]) > 0
}

func (r *Registry) snapshotRecipient(recipientID string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.byRecipient[recipientID]))
	for id := range r.byRecipient[recipientID] {
		if e, ok := r.byConn[id]; ok {
			conns = append(conns, e.conn)
		}
	}
	return conns
}

func (r *Registry) snapshotRoom(room string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.byRoom[room]))
	for id := range r.byRoom[room] {
		if e, ok := r.byConn[id]; ok {
			conns = append(conns, e.conn)
		}
	}
	return conns
}

// fanOut sends outside the lock so a slow connection cannot stall
// registration or other broadcasts. A failed send drops the connection.
func (r *Registry) fanOut(ctx context.Context, conns []Conn, msg Message) int {
	sent := 0
	for _, c := range conns {
		if err := c.Send(ctx, msg); err != nil {
			r.log.Debug("dropping connection after failed send",
				zap.String("conn_id", c.ID()),
				zap.Error(err))
			r.Disconnect(c.ID())
			continue
		}
		sent++
	}
	return sent
}
