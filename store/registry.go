package store

import (
	"sync"

	"github.com/justapithecus/strata/errs"
	"github.com/justapithecus/strata/types"
)

// Registry maps scheme to the active backend instance serving it, and owns
// the per-scheme connection-limiting semaphores every backend call must
// acquire before issuing network I/O.
type Registry struct {
	mu       sync.Mutex
	backends map[types.Scheme]Backend
	profiles map[types.Scheme]string // scheme -> active profile ID
	limits   map[types.Scheme]chan struct{}
	perScheme int
}

// NewRegistry creates a Registry whose per-scheme connection semaphores
// each allow connectionsPerScheme concurrent in-flight calls.
func NewRegistry(connectionsPerScheme int) *Registry {
	if connectionsPerScheme <= 0 {
		connectionsPerScheme = 16
	}
	return &Registry{
		backends:  make(map[types.Scheme]Backend),
		profiles:  make(map[types.Scheme]string),
		limits:    make(map[types.Scheme]chan struct{}),
		perScheme: connectionsPerScheme,
	}
}

// Register installs backend as the active instance for its scheme, bound
// to profileID.
func (r *Registry) Register(backend Backend, profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	scheme := backend.Scheme()
	r.backends[scheme] = backend
	r.profiles[scheme] = profileID
	if _, ok := r.limits[scheme]; !ok {
		r.limits[scheme] = make(chan struct{}, r.perScheme)
	}
}

// Unregister removes the active backend for scheme, if any.
func (r *Registry) Unregister(scheme types.Scheme) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, scheme)
	delete(r.profiles, scheme)
}

// Resolve returns the backend registered for u.Scheme.
func (r *Registry) Resolve(u types.URI) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.backends[u.Scheme]
	if !ok {
		return nil, errs.New(errs.KindUnsupportedScheme, "resolve", u.String(), nil).
			WithHint("no backend registered for this scheme")
	}
	return b, nil
}

// Entries returns the registry's current scheme -> profile bindings.
func (r *Registry) Entries() []types.RegistryEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.RegistryEntry, 0, len(r.profiles))
	for scheme, profileID := range r.profiles {
		out = append(out, types.RegistryEntry{Scheme: scheme, ProfileID: profileID})
	}
	return out
}

// Acquire blocks until a connection slot for scheme is available, returning
// a release function the caller must call exactly once. If scheme has no
// configured limit (backend never registered), Acquire is a no-op.
func (r *Registry) Acquire(scheme types.Scheme) func() {
	r.mu.Lock()
	sem, ok := r.limits[scheme]
	if !ok {
		sem = make(chan struct{}, r.perScheme)
		r.limits[scheme] = sem
	}
	r.mu.Unlock()

	sem <- struct{}{}
	return func() { <-sem }
}
