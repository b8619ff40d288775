package telemetry

import (
	"sync"
)

// Registry tracks the active subscriber handles for each agent.
//
// LOCK ORDERING:
// 1. r.mu (Registry's RWMutex) - protects the subscribers map
// 2. Client internals (send channel, sync.Once) - never touched under r.mu
//
// Client.close calls Unregister, so nothing in this file may call into a
// Client while holding r.mu.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Client]struct{}
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a handle to its agent's subscriber set.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subscribers[c.agentID]
	if !ok {
		set = make(map[*Client]struct{})
		r.subscribers[c.agentID] = set
	}
	set[c] = struct{}{}
	activeSubscribers.Inc()
}

// Unregister removes a handle from its agent's subscriber set. Removing a
// handle that was never registered, or was already removed, is a no-op.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.subscribers[c.agentID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}

	delete(set, c)
	if len(set) == 0 {
		delete(r.subscribers, c.agentID)
	}
	activeSubscribers.Dec()
}

// Snapshot returns a copy of the agent's current subscriber set. Handles
// registered after the snapshot is taken are not part of it, and the caller
// iterates the result without holding any registry lock.
func (r *Registry) Snapshot(agentID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.subscribers[agentID]
	if !ok {
		return nil
	}

	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	return clients
}

// SubscriberCount returns the total number of registered handles across all
// agents.
func (r *Registry) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, set := range r.subscribers {
		n += len(set)
	}
	return n
}

// CloseAll tears down every registered handle. Used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.subscribers))
	for _, set := range r.subscribers {
		for c := range set {
			clients = append(clients, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}
