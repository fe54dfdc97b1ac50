package websocket

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"growtive/pkg/interfaces"
)

var _ interfaces.Channel = (*Registry)(nil)

// Registry tracks which live connections are subscribed to which channel
// keys. It is the in-process implementation of interfaces.Channel.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[string]interfaces.Connection // key -> connID -> conn
	joined   map[string]map[string]bool                  // connID -> keys
	log      *logrus.Entry
}

// NewRegistry creates a new connection registry
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[string]interfaces.Connection),
		joined:   make(map[string]map[string]bool),
		log:      logrus.WithField("component", "registry"),
	}
}

// Join subscribes conn to key. Closed or unauthenticated connections are
// refused.
func (r *Registry) Join(conn interfaces.Connection, key string) error {
	if conn == nil {
		return ErrNilConnection
	}
	if key == "" {
		return ErrEmptyChannelKey
	}
	if !conn.IsAuthenticated() {
		return ErrConnectionNotAuthenticated
	}
	if conn.IsClosed() {
		return ErrConnectionClosed
	}

	id := conn.GetID()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-checked under the lock; Disconnect closes before LeaveAll.
	if conn.IsClosed() {
		return ErrConnectionClosed
	}

	subs, ok := r.channels[key]
	if !ok {
		subs = make(map[string]interfaces.Connection)
		r.channels[key] = subs
	}
	subs[id] = conn

	keys, ok := r.joined[id]
	if !ok {
		keys = make(map[string]bool)
		r.joined[id] = keys
	}
	keys[key] = true
	return nil
}

// Leave removes conn from key. Unknown pairs are ignored.
func (r *Registry) Leave(conn interfaces.Connection, key string) {
	if conn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conn.GetID(), key)
}

// LeaveAll drops every subscription held by conn. It runs on disconnect.
func (r *Registry) LeaveAll(conn interfaces.Connection) {
	if conn == nil {
		return
	}
	id := conn.GetID()

	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.joined[id] {
		r.leaveLocked(id, key)
	}
	delete(r.joined, id)
}

func (r *Registry) leaveLocked(id, key string) {
	if subs, ok := r.channels[key]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(r.channels, key)
		}
	}
	if keys, ok := r.joined[id]; ok {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.joined, id)
		}
	}
}

// Broadcast writes payload to every subscriber of key and returns the number
// of connections that accepted it. A subscriber whose connection has closed is
// dropped from all channels.
func (r *Registry) Broadcast(key string, payload interface{}) int {
	subs := r.Subscribers(key)

	delivered := 0
	for _, conn := range subs {
		err := conn.WriteJSON(payload)
		if err == nil {
			delivered++
			continue
		}
		r.log.WithFields(logrus.Fields{
			"channel":       key,
			"connection_id": conn.GetID(),
			"user_id":       conn.GetUserID(),
		}).WithError(err).Debug("delivery failed")
		if errors.Is(err, ErrConnectionClosed) || conn.IsClosed() {
			r.LeaveAll(conn)
		}
	}
	return delivered
}

// Subscribers returns a snapshot of the connections subscribed to key.
func (r *Registry) Subscribers(key string) []interfaces.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.channels[key]
	out := make([]interfaces.Connection, 0, len(subs))
	for _, conn := range subs {
		out = append(out, conn)
	}
	return out
}

// GetStats returns registry statistics for monitoring and debugging
func (r *Registry) GetStats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subscriptions := 0
	for _, subs := range r.channels {
		subscriptions += len(subs)
	}
	return map[string]int{
		"connections":   len(r.joined),
		"channels":      len(r.channels),
		"subscriptions": subscriptions,
	}
}
