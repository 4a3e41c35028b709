package worker

import (
	"context"
	"sync"
)

// Registry tracks the cancel functions of running crawls so they can be
// stopped from outside the worker.
type Registry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{cancels: make(map[string]context.CancelFunc)}
}

// Cancel stops the crawl if it is running and reports whether it was.
func (r *Registry) Cancel(crawlID string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[crawlID]
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Running reports whether crawlID is currently registered.
func (r *Registry) Running(crawlID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[crawlID]
	return ok
}

func (r *Registry) register(crawlID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[crawlID] = cancel
}

func (r *Registry) release(crawlID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, crawlID)
}
