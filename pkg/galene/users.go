// Copyright 2024-2026 Aiku AI

package galene

import (
	"maps"
	"sync"
)

// UserRegistry maps the ids of users present in the group to their display
// names. It is written by the receive loop and may be read concurrently.
type UserRegistry struct {
	mu    sync.RWMutex
	users map[string]string
}

func NewUserRegistry() *UserRegistry {
	return &UserRegistry{users: make(map[string]string)}
}

// Add registers a user. Adding an id that is already present replaces its
// name.
func (r *UserRegistry) Add(id, name string) {
	r.mu.Lock()
	r.users[id] = name
	r.mu.Unlock()
}

// Remove deletes a user and returns the name it was registered with.
func (r *UserRegistry) Remove(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.users[id]
	if ok {
		delete(r.users, id)
	}
	return name, ok
}

func (r *UserRegistry) Name(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.users[id]
	return name, ok
}

func (r *UserRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Snapshot returns a copy of the registry.
func (r *UserRegistry) Snapshot() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.users)
}
