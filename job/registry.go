package job

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/xraph/foreman"
)

// HandlerFunc is a type-erased job handler that accepts the raw payload.
// The typed Definition[T] is converted to a HandlerFunc at registration
// time by closing over codec decode + the typed handler.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Registry maps job types to type-erased handler functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[Type]HandlerFunc
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[Type]HandlerFunc),
	}
}

// Register binds a handler to a job type. Registering the same type
// twice returns foreman.ErrHandlerAlreadyRegistered.
func (r *Registry) Register(jobType Type, h HandlerFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("%w: %s", foreman.ErrHandlerAlreadyRegistered, jobType)
	}
	r.handlers[jobType] = h
	return nil
}

// Get returns the handler for the given job type.
// Returns false if no handler is registered.
func (r *Registry) Get(jobType Type) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types returns all registered job types, sorted.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
