package rpc

import (
	"fmt"
	"sync"
)

// MethodRegistry maps wire names to handlers.
type MethodRegistry struct {
	mu      sync.RWMutex
	methods map[string]MethodHandler
}

func NewMethodRegistry() *MethodRegistry {
	return &MethodRegistry{methods: make(map[string]MethodHandler)}
}

func (r *MethodRegistry) Register(h MethodHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := h.Name()
	if _, exists := r.methods[name]; exists {
		return fmt.Errorf("handler already registered for method: %s", name)
	}
	r.methods[name] = h
	return nil
}

func (r *MethodRegistry) MustRegister(h MethodHandler) {
	if err := r.Register(h); err != nil {
		panic(err)
	}
}

func (r *MethodRegistry) Get(method string) (MethodHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.methods[method]
	return h, ok
}

// Methods returns all registered method names.
func (r *MethodRegistry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for name := range r.methods {
		names = append(names, name)
	}
	return names
}
