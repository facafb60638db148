// internal/delivery/registry.go
package delivery

import (
	"fmt"
	"strings"
	"sync"
)

// Handler delivers a message to a thread identified by threadKey.
type Handler func(threadKey, message string) error

// Registry routes messages to the appropriate delivery handler based on
// thread key prefix (e.g. "telegram:", "webhook:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for thread keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the thread key prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(threadKey, message string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(threadKey, prefix) {
			return handler(threadKey, message)
		}
	}
	return fmt.Errorf("no delivery handler for thread key: %s", threadKey)
}
