// Package registry keeps at most one live adapter.Manager per connection
// identity (user@host) and counts the sessions using each.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sadopc/sqlace/internal/adapter"
	"github.com/sadopc/sqlace/internal/connspec"
	"github.com/sadopc/sqlace/internal/logger"
)

// ErrClosed is returned once Close has been called.
var ErrClosed = errors.New("connection registry closed")

// Opener creates a manager for spec. adapter.Open is the production
// opener.
type Opener func(ctx context.Context, spec connspec.Spec) (adapter.Manager, error)

type entry struct {
	mgr  adapter.Manager
	refs int
}

// Registry maps identities to live managers. The first spec to connect
// for an identity wins; later specs with other credentials get the
// existing manager.
type Registry struct {
	open Opener

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool

	opens singleflight.Group
}

// New returns a registry that opens managers with open.
func New(open Opener) *Registry {
	return &Registry{open: open, entries: make(map[string]*entry)}
}

// WithOptions returns the adapter.Open opener bound to opts.
func WithOptions(opts adapter.Options) Opener {
	return func(ctx context.Context, spec connspec.Spec) (adapter.Manager, error) {
		return adapter.Open(ctx, spec, opts)
	}
}

// GetOrCreate returns the manager for spec's identity, opening one if
// none is live. Concurrent callers for one identity share a single open.
func (r *Registry) GetOrCreate(ctx context.Context, spec connspec.Spec) (adapter.Manager, error) {
	return r.get(ctx, spec, false)
}

// Acquire is GetOrCreate plus a reference held until Release.
func (r *Registry) Acquire(ctx context.Context, spec connspec.Spec) (adapter.Manager, error) {
	return r.get(ctx, spec, true)
}

func (r *Registry) get(ctx context.Context, spec connspec.Spec, acquire bool) (adapter.Manager, error) {
	id := spec.Identity()
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, ErrClosed
		}
		if e, ok := r.entries[id]; ok {
			if acquire {
				e.refs++
			}
			r.mu.Unlock()
			return e.mgr, nil
		}
		r.mu.Unlock()

		// Open, then loop: references are only taken under r.mu.
		if _, err, _ := r.opens.Do(id, func() (any, error) {
			return nil, r.create(ctx, id, spec)
		}); err != nil {
			return nil, err
		}
	}
}

func (r *Registry) create(ctx context.Context, id string, spec connspec.Spec) error {
	r.mu.Lock()
	_, ok := r.entries[id]
	r.mu.Unlock()
	if ok {
		return nil
	}

	m, err := r.open(ctx, spec)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		go m.Destroy()
		return ErrClosed
	}
	r.entries[id] = &entry{mgr: m}
	logger.Info("connection registered", "identity", id, "adapter", m.AdapterName())
	return nil
}

// Get returns the live manager for identity.
func (r *Registry) Get(identity string) (adapter.Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[identity]
	if !ok {
		return nil, false
	}
	return e.mgr, true
}

// Release drops one reference. When it was the last, the manager is
// evicted and returned with last set; the caller destroys it.
func (r *Registry) Release(identity string) (mgr adapter.Manager, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[identity]
	if !ok {
		return nil, false
	}
	e.refs--
	if e.refs > 0 {
		return e.mgr, false
	}
	delete(r.entries, identity)
	return e.mgr, true
}

// Refs reports the live references on identity.
func (r *Registry) Refs(identity string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[identity]; ok {
		return e.refs
	}
	return 0
}

// Remove evicts identity regardless of references and returns the
// manager for the caller to destroy. Callers cancel outstanding
// executions first.
func (r *Registry) Remove(identity string) adapter.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[identity]
	if !ok {
		return nil
	}
	delete(r.entries, identity)
	return e.mgr
}

// Identities lists live identities in sorted order.
func (r *Registry) Identities() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Close destroys every manager. Later calls to GetOrCreate fail.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.entries
	r.entries = map[string]*entry{}
	r.mu.Unlock()

	var errs []error
	for id, e := range entries {
		if err := e.mgr.Destroy(); err != nil {
			errs = append(errs, err)
		}
		logger.Debug("connection destroyed", "identity", id)
	}
	return errors.Join(errs...)
}
