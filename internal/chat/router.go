package chat

// Router fans broadcast messages out to every registered client but the sender.
type Router struct {
	registry *Registry
}

// NewRouter returns a Router reading membership from registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Broadcast enqueues one envelope for every client except sender and returns
// how many recipients accepted it. It never blocks on a slow recipient.
func (r *Router) Broadcast(sender, body string) int {
	env := Envelope{Sender: sender, Body: body}

	delivered := 0
	for _, c := range r.registry.Snapshot() {
		if c.Username == sender {
			continue
		}
		if c.Deliver(env) {
			delivered++
		}
	}
	return delivered
}
