package adapter

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/sadopc/sqlace/internal/connspec"
)

// Adapter opens connection managers for one database family.
type Adapter interface {
	Name() string
	// Schemes lists the URL schemes routed to this adapter.
	Schemes() []string
	DefaultPort() int
	Open(ctx context.Context, spec connspec.Spec, opts Options) (Manager, error)
}

// Options tune the native pool behind a manager.
type Options struct {
	MaxConns       int32
	ConnectTimeout time.Duration
	// CancelTimeout bounds the side-channel cancel request.
	CancelTimeout time.Duration
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		MaxConns:       4,
		ConnectTimeout: 10 * time.Second,
		CancelTimeout:  5 * time.Second,
	}
}

// WithDefaults fills zero fields from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.MaxConns <= 0 {
		o.MaxConns = d.MaxConns
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.CancelTimeout <= 0 {
		o.CancelTimeout = d.CancelTimeout
	}
	return o
}

// Registry holds registered adapters by URL scheme.
var Registry = map[string]Adapter{}

// Register adds an adapter to the global registry under each of its schemes.
func Register(a Adapter) {
	for _, s := range a.Schemes() {
		Registry[strings.ToLower(s)] = a
	}
}

// Schemes returns every registered scheme, sorted.
func Schemes() []string {
	out := make([]string, 0, len(Registry))
	for s := range Registry {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the adapter for scheme.
func Lookup(scheme string) (Adapter, error) {
	scheme = strings.ToLower(scheme)
	if a, ok := Registry[scheme]; ok {
		return a, nil
	}
	return nil, &UnsupportedProtocolError{Scheme: scheme, Suggestion: suggest(scheme)}
}

// suggest returns the closest registered scheme, or "".
func suggest(scheme string) string {
	if scheme == "" {
		return ""
	}
	matches := fuzzy.Find(scheme, Schemes())
	if len(matches) == 0 {
		return ""
	}
	return matches[0].Str
}

// Open selects the adapter by spec.Protocol and opens a manager. Failures
// other than an unknown scheme are returned as *ConnectError.
func Open(ctx context.Context, spec connspec.Spec, opts Options) (Manager, error) {
	a, err := Lookup(spec.Protocol)
	if err != nil {
		return nil, err
	}
	m, err := a.Open(ctx, spec, opts.WithDefaults())
	if err != nil {
		var ce *ConnectError
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, &ConnectError{Adapter: a.Name(), Identity: spec.Identity(), Err: err}
	}
	return m, nil
}
