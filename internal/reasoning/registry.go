// Package reasoning resolves configured reasoning backends (LLMs and the like)
// by key. Handlers treat a backend as an opaque text-in/text-out service.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dyluth/hri/internal/logging"
	"go.uber.org/zap"
)

// ErrUnknownBackend is returned by Load for keys that were never configured,
// or whose type has no registered factory.
var ErrUnknownBackend = errors.New("unknown reasoning backend")

// Backend answers a prompt.
type Backend interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// Spec describes one configured backend.
type Spec struct {
	Type   string
	Params map[string]string
}

// Factory builds a backend from its spec.
type Factory func(spec Spec) (Backend, error)

// Registry maps backend keys to lazily built, shared backend instances.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	specs     map[string]Spec
	instances map[string]Backend
	logger    *zap.Logger
}

// NewRegistry creates a registry with the built-in "static" and "http" factories.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		specs:     make(map[string]Spec),
		instances: make(map[string]Backend),
		logger:    logging.OrNop(logger),
	}
	r.RegisterFactory(TypeStatic, NewStatic)
	r.RegisterFactory(TypeHTTP, NewHTTP)
	return r
}

// RegisterFactory makes a backend type available. A later registration replaces an earlier one.
func (r *Registry) RegisterFactory(backendType string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backendType] = f
}

// Configure binds key to spec and drops any instance already built for key.
func (r *Registry) Configure(key string, spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[key] = spec
	delete(r.instances, key)
}

// Keys returns the configured keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.specs))
	for k := range r.specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load returns the backend for key, building it on first use.
// Every caller gets the same instance. Failed builds are not cached.
func (r *Registry) Load(key string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.instances[key]; ok {
		return b, nil
	}

	spec, ok := r.specs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, key)
	}

	factory, ok := r.factories[spec.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q has unsupported type %q", ErrUnknownBackend, key, spec.Type)
	}

	b, err := factory(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load reasoning backend %q: %w", key, err)
	}

	r.instances[key] = b
	return b, nil
}

// Lookup is Load without the error: it returns nil when no backend is
// available, and logs why.
func (r *Registry) Lookup(key string) Backend {
	b, err := r.Load(key)
	if err != nil {
		r.logger.Warn("reasoning backend unavailable", zap.String("backend", key), zap.Error(err))
		return nil
	}
	return b
}
