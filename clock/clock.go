// Package clock provides the clock-domain capability consumed by pipeline
// managers. Shared clocks (PTP) are process-wide singletons per domain; the
// Registry reference-counts them so the underlying clock survives as long as
// any pipeline uses its domain, without any single pipeline owning it.
package clock

import (
	"fmt"
	"sync"

	"github.com/eyevinn-osaas/strom-sub003/errors"
)

// Handle is a usable clock for a live graph
type Handle interface {
	Domain() int
	IsSynced() bool
}

// Provider hands out shared clocks by domain
type Provider interface {
	GetOrCreateClock(domain int) (Handle, error)
}

// Factory constructs the underlying clock for a domain. The factory is the
// engine binding's concern; it may block while the clock synchronizes its
// transport.
type Factory func(domain int) (Handle, error)

type refClock struct {
	handle Handle
	refs   int
}

// Registry is a reference-counted Provider. Release must be called once per
// successful GetOrCreateClock.
type Registry struct {
	factory Factory
	clocks  map[int]*refClock
	mu      sync.Mutex
}

// NewRegistry creates a registry backed by the given factory
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		clocks:  make(map[int]*refClock),
	}
}

// GetOrCreateClock implements Provider
func (r *Registry) GetOrCreateClock(domain int) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rc, ok := r.clocks[domain]; ok {
		rc.refs++
		return rc.handle, nil
	}

	if r.factory == nil {
		return nil, errors.WrapFatal(
			fmt.Errorf("no clock factory configured"),
			"clock.Registry", "GetOrCreateClock", "create clock")
	}

	handle, err := r.factory(domain)
	if err != nil {
		return nil, errors.WrapTransient(err, "clock.Registry", "GetOrCreateClock",
			fmt.Sprintf("create clock for domain %d", domain))
	}

	r.clocks[domain] = &refClock{handle: handle, refs: 1}
	return handle, nil
}

// Release drops one reference to a domain's clock, removing the clock when
// the last reference goes away.
func (r *Registry) Release(domain int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rc, ok := r.clocks[domain]
	if !ok {
		return
	}
	rc.refs--
	if rc.refs <= 0 {
		delete(r.clocks, domain)
	}
}

// Refs returns the current reference count for a domain (introspection)
func (r *Registry) Refs(domain int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rc, ok := r.clocks[domain]; ok {
		return rc.refs
	}
	return 0
}

// SystemClock is the trivial Handle used when a flow does not request a
// shared clock domain.
type SystemClock struct{}

// Domain returns -1; the system clock belongs to no shared domain
func (SystemClock) Domain() int { return -1 }

// IsSynced always reports true for the local system clock
func (SystemClock) IsSynced() bool { return true }
