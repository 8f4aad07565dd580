package adapter

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Memo caches the first successful result of a load for the lifetime of
// a manager. Concurrent first loads share one call; failed loads are not
// cached, so the next caller retries.
type Memo[T any] struct {
	mu    sync.Mutex
	set   bool
	val   T
	group singleflight.Group
}

// Get returns the cached value or runs load.
func (m *Memo[T]) Get(load func() (T, error)) (T, error) {
	m.mu.Lock()
	if m.set {
		v := m.val
		m.mu.Unlock()
		return v, nil
	}
	m.mu.Unlock()

	v, err, _ := m.group.Do("load", func() (any, error) {
		m.mu.Lock()
		if m.set {
			v := m.val
			m.mu.Unlock()
			return v, nil
		}
		m.mu.Unlock()

		v, err := load()
		if err != nil {
			return v, err
		}
		m.mu.Lock()
		m.val, m.set = v, true
		m.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// Cached reports the cached value without loading.
func (m *Memo[T]) Cached() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.val, m.set
}

// Reset drops the cached value.
func (m *Memo[T]) Reset() {
	m.mu.Lock()
	var zero T
	m.val, m.set = zero, false
	m.mu.Unlock()
}
