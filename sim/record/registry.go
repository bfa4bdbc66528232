package record

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps section headers to record factories, so a reader can rebuild
// heterogeneous module instances from a stream.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() Record)}
}

// Register associates header with factory. Registering a header twice is an
// error.
func (r *Registry) Register(header string, factory func() Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[header]; ok {
		return fmt.Errorf("record %q already registered", header)
	}
	r.factories[header] = factory
	return nil
}

// MustRegister is Register for init-time wiring; it panics on duplicates.
func (r *Registry) MustRegister(header string, factory func() Record) {
	if err := r.Register(header, factory); err != nil {
		panic(err)
	}
}

// New creates a default record for header.
func (r *Registry) New(header string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[header]
	if !ok {
		return nil, Errorf("record", "New", ErrMalformedStream, "unsupported section %q", header)
	}
	return factory(), nil
}

// Headers lists registered headers in sorted order.
func (r *Registry) Headers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.factories))
	for h := range r.factories {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Default is the process-wide registry that module packages register into
// from init.
var Default = NewRegistry()
