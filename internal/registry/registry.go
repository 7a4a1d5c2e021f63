// Package registry maintains the binding between live connections and
// logged-in identities. It is the only shared mutable table in the relay
// and every mutation goes through one mutex, so the current binding for an
// identity is well-defined at every instant.
package registry

import (
	"sync"

	"github.com/SkyMonder/SkyCallPro/internal/hub"
	"github.com/SkyMonder/SkyCallPro/internal/metrics"
)

// Registry is the session registry: at most one connection per identity and
// at most one identity per connection.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]*hub.Connection
	byConn     map[string]string // connection ID -> username

	// onChange is invoked once per net mutation, after the lock is
	// released, so a slow subscriber cannot block registry operations.
	onChange func()
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byIdentity: make(map[string]*hub.Connection),
		byConn:     make(map[string]string),
	}
}

// OnChange sets the callback fired after every net registry mutation.
// Must be called before the registry is shared between goroutines.
func (r *Registry) OnChange(fn func()) {
	r.onChange = fn
}

// Bind registers username as logged in on conn. If the identity already has
// a bound connection, the old binding is silently replaced (last-login-wins);
// the superseded connection is not notified or closed. Rebinding the same
// connection to the same identity is a no-op.
func (r *Registry) Bind(conn *hub.Connection, username string) {
	r.mu.Lock()
	if r.byConn[conn.ID] == username && r.byIdentity[username] == conn {
		r.mu.Unlock()
		return
	}

	// A connection re-announcing as someone else drops its old identity.
	if old, ok := r.byConn[conn.ID]; ok && old != username {
		if r.byIdentity[old] == conn {
			delete(r.byIdentity, old)
		}
	}
	// Last-login-wins: orphan the previous connection for this identity.
	if prev, ok := r.byIdentity[username]; ok && prev != conn {
		delete(r.byConn, prev.ID)
	}

	r.byIdentity[username] = conn
	r.byConn[conn.ID] = username
	online := len(r.byIdentity)
	r.mu.Unlock()

	metrics.UsersOnline.Set(float64(online))
	r.notify()
}

// Lookup resolves the current connection for an identity.
func (r *Registry) Lookup(username string) (*hub.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.byIdentity[username]
	return conn, ok
}

// IdentityOf is the reverse lookup used to authenticate inbound events: the
// live connection itself is the authentication token after announce.
func (r *Registry) IdentityOf(conn *hub.Connection) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	username, ok := r.byConn[conn.ID]
	return username, ok
}

// Unbind removes the binding for conn, but only if conn is still the
// current connection for its identity. A stale unbind arriving after a
// rebind supersede is a no-op. Reports whether a removal occurred.
func (r *Registry) Unbind(conn *hub.Connection) bool {
	r.mu.Lock()
	username, ok := r.byConn[conn.ID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byConn, conn.ID)
	if r.byIdentity[username] == conn {
		delete(r.byIdentity, username)
	}
	online := len(r.byIdentity)
	r.mu.Unlock()

	metrics.UsersOnline.Set(float64(online))
	r.notify()
	return true
}

// Online returns the set of identities with a bound connection.
func (r *Registry) Online() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	online := make(map[string]bool, len(r.byIdentity))
	for username := range r.byIdentity {
		online[username] = true
	}
	return online
}

// OnlineCount returns the number of identities with a bound connection.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}
