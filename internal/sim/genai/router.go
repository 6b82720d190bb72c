package genai

import (
	"fmt"
	"sync"
)

// Factory builds a Processor for a model key. Implementations decide what a
// key means (provider model name, deployment alias).
type Factory func(modelKey string) (Processor, error)

// Router resolves model keys to processors, constructing each at most once.
// Safe for concurrent use.
type Router struct {
	factory Factory

	mu         sync.RWMutex
	processors map[string]Processor
}

// NewRouter returns a Router backed by factory.
func NewRouter(factory Factory) *Router {
	return &Router{
		factory:    factory,
		processors: make(map[string]Processor),
	}
}

// Resolve returns the processor for modelKey, building and caching it on
// first use.
func (r *Router) Resolve(modelKey string) (Processor, error) {
	if modelKey == "" {
		return nil, fmt.Errorf("resolve processor: empty model key")
	}

	r.mu.RLock()
	processor, ok := r.processors[modelKey]
	r.mu.RUnlock()
	if ok {
		return processor, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if processor, ok := r.processors[modelKey]; ok {
		return processor, nil
	}

	processor, err := r.factory(modelKey)
	if err != nil {
		return nil, fmt.Errorf("resolve processor %q: %w", modelKey, err)
	}
	r.processors[modelKey] = processor
	return processor, nil
}
