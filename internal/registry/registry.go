// Package registry tracks which users are reachable right now, and where.
//
// It holds two independent in-memory tables keyed by username: control
// sessions (a handle to push signaling events over the user's persistent
// connection) and datagram endpoints (the UDP address voice frames for the
// user should be forwarded to). The registry does no I/O of its own; it is
// a pure lookup table shared between the signaling gateway and the voice
// relay, so every method is safe for concurrent use.
package registry

import (
	"net"
	"sync"
	"time"
)

// ControlHandle is an opaque reference to a live control connection.
// Push delivers a single named event to that connection.
type ControlHandle interface {
	Push(event string, data any) error
}

// Session records one user's live control connection.
type Session struct {
	Identity    string
	Handle      ControlHandle
	ConnectedAt time.Time
}

// Registry maps user identities to their current control session and
// datagram endpoint. The two tables have independent lifecycles: a user
// can have a control session without ever registering a voice endpoint,
// and a stale voice endpoint can outlive the control session.
type Registry struct {
	mu        sync.RWMutex
	controls  map[string]Session
	endpoints map[string]*net.UDPAddr
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		controls:  make(map[string]Session),
		endpoints: make(map[string]*net.UDPAddr),
	}
}

// RegisterControl records handle as the control session for identity,
// replacing any existing session. The replaced session, if any, is no
// longer reachable through the registry.
func (r *Registry) RegisterControl(identity string, handle ControlHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controls[identity] = Session{
		Identity:    identity,
		Handle:      handle,
		ConnectedAt: time.Now(),
	}
}

// UnregisterControl removes the control session for identity and returns
// the prior handle. The second return is false if no session existed.
func (r *Registry) UnregisterControl(identity string) (ControlHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.controls[identity]
	if !ok {
		return nil, false
	}
	delete(r.controls, identity)
	return sess.Handle, true
}

// LookupControl returns the control handle for identity. Absence means
// the user is not reachable; it is never an error.
func (r *Registry) LookupControl(identity string) (ControlHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.controls[identity]
	if !ok {
		return nil, false
	}
	return sess.Handle, true
}

// OnlineUsers returns the identities with a live control session, in no
// particular order.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.controls))
	for identity := range r.controls {
		users = append(users, identity)
	}
	return users
}

// OnlineCount returns the number of live control sessions.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controls)
}

// Sessions returns a snapshot of all live control sessions. The slice is
// a copy; mutating it does not affect the registry.
func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]Session, 0, len(r.controls))
	for _, sess := range r.controls {
		sessions = append(sessions, sess)
	}
	return sessions
}

// RegisterEndpoint records addr as the datagram endpoint for identity.
// Last writer wins; the address is not authenticated.
func (r *Registry) RegisterEndpoint(identity string, addr *net.UDPAddr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[identity] = addr
}

// UnregisterEndpoint removes the datagram endpoint for identity.
func (r *Registry) UnregisterEndpoint(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.endpoints, identity)
}

// LookupEndpoint returns the datagram endpoint for identity.
func (r *Registry) LookupEndpoint(identity string) (*net.UDPAddr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := r.endpoints[identity]
	return addr, ok
}
