package providers

// Registry holds the configured provider clients in priority order.
type Registry struct {
	ordered []Client
	byName  map[string]Client
}

// NewRegistry builds a registry; the argument order is the priority order.
func NewRegistry(clients ...Client) *Registry {
	registry := &Registry{byName: make(map[string]Client, len(clients))}
	for _, client := range clients {
		if client == nil {
			continue
		}
		if _, exists := registry.byName[client.Name()]; exists {
			continue
		}
		registry.ordered = append(registry.ordered, client)
		registry.byName[client.Name()] = client
	}
	return registry
}

// Clients returns every registered client in priority order.
func (r *Registry) Clients() []Client {
	cp := make([]Client, len(r.ordered))
	copy(cp, r.ordered)
	return cp
}

// Get returns the client with the given name, or nil.
func (r *Registry) Get(name string) Client {
	return r.byName[name]
}

// Names returns the registered provider names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, client := range r.ordered {
		names = append(names, client.Name())
	}
	return names
}

// ChangeFeedFor returns the provider's change feed when it exposes one.
func (r *Registry) ChangeFeedFor(name string) (ChangeFeed, bool) {
	feed, ok := r.byName[name].(ChangeFeed)
	return feed, ok
}
