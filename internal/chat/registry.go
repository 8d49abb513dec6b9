package chat

import "sync"

// Registry maps usernames to the handles of joined clients. It is the single
// source of truth for who is connected.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// InsertIfAbsent registers c under its username unless that name is taken.
// The check and the insert happen under one lock.
func (r *Registry) InsertIfAbsent(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[c.Username]; ok {
		return false
	}
	r.clients[c.Username] = c
	return true
}

// Remove unregisters whatever client holds username.
func (r *Registry) Remove(username string) {
	r.mu.Lock()
	delete(r.clients, username)
	r.mu.Unlock()
}

// RemoveClient unregisters c only if it is still the entry for its username.
func (r *Registry) RemoveClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.clients[c.Username]; !ok || existing != c {
		return false
	}
	delete(r.clients, c.Username)
	return true
}

// Contains reports whether username is registered.
func (r *Registry) Contains(username string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.clients[username]
	return ok
}

// Lookup returns the client registered under username.
func (r *Registry) Lookup(username string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[username]
	return c, ok
}

// Snapshot returns the registered clients in no particular order.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
