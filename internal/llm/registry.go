package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry holds the configured backends and the mutable active selection.
// Switching is atomic: readers either see the old backend or the new one,
// never a half-committed state.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
	active  string
}

// NewRegistry creates a registry with defaultName active. defaultName must be
// among the given clients.
func NewRegistry(defaultName string, clients ...Client) (*Registry, error) {
	if len(clients) == 0 {
		return nil, fmt.Errorf("at least one language model backend is required")
	}

	byName := make(map[string]Client, len(clients))
	for _, c := range clients {
		byName[c.Name()] = c
	}
	if _, ok := byName[defaultName]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured", defaultName)
	}

	return &Registry{
		clients: byName,
		active:  defaultName,
	}, nil
}

// Switch swaps the active backend after verifying the target's readiness.
// The previous backend stays active when the swap fails.
func (r *Registry) Switch(ctx context.Context, name string) error {
	r.mu.RLock()
	client, ok := r.clients[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown provider %q, available: %v", name, r.Names())
	}

	if err := client.Ready(ctx); err != nil {
		return fmt.Errorf("provider %q failed readiness check: %w", name, err)
	}

	r.mu.Lock()
	r.active = name
	r.mu.Unlock()
	return nil
}

// Current returns the active provider name.
func (r *Registry) Current() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Active returns the active backend.
func (r *Registry) Active() Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[r.active]
}

// Ready reports readiness of the active backend.
func (r *Registry) Ready(ctx context.Context) error {
	return r.Active().Ready(ctx)
}

// Names returns all configured provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
