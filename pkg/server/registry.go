package server

import (
	"sort"
	"strings"
	"sync"

	"github.com/lfarias/chatrelay/pkg/model"
)

// ClientRegistry maps bound handles to their owning sessions. A handle
// appears here if and only if a live session is currently bound to it.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*session
}

// NewClientRegistry creates an empty identity registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*session),
	}
}

// Register atomically binds a handle to a session. It succeeds iff the
// handle is valid and not already taken: under concurrent calls for the
// same handle, exactly one caller wins.
func (r *ClientRegistry) Register(handle string, sess *session) bool {
	handle = strings.TrimSpace(handle)
	if model.ValidateHandle(handle) != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.clients[handle]; taken {
		return false
	}
	r.clients[handle] = sess
	return true
}

// Unregister removes a handle, but only if it is still owned by sess.
// A stale entry left by a vanished peer is never removed on behalf of a
// newer session with the same handle.
func (r *ClientRegistry) Unregister(handle string, sess *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.clients[handle]; ok && owner == sess {
		delete(r.clients, handle)
	}
}

// Lookup returns the session bound to a handle.
func (r *ClientRegistry) Lookup(handle string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.clients[handle]
	return sess, ok
}

// Handles returns a sorted snapshot of all registered handles.
func (r *ClientRegistry) Handles() []string {
	r.mu.RLock()
	handles := make([]string, 0, len(r.clients))
	for h := range r.clients {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	sort.Strings(handles)
	return handles
}

// Count returns the number of registered handles.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
