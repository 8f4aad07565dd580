package adapter

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMemo_CachesSuccess(t *testing.T) {
	var m Memo[[]string]
	var calls atomic.Int32
	load := func() ([]string, error) {
		calls.Add(1)
		return []string{"a", "b"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := m.Get(load)
		if err != nil || len(v) != 2 {
			t.Fatalf("Get = %v, %v", v, err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("load ran %d times, want 1", calls.Load())
	}
	if _, ok := m.Cached(); !ok {
		t.Error("Cached() = false after a successful load")
	}
}

func TestMemo_FailureNotCached(t *testing.T) {
	var m Memo[bool]
	var calls atomic.Int32

	_, err := m.Get(func() (bool, error) {
		calls.Add(1)
		return false, errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := m.Cached(); ok {
		t.Error("failed load was cached")
	}

	v, err := m.Get(func() (bool, error) {
		calls.Add(1)
		return true, nil
	})
	if err != nil || !v {
		t.Fatalf("Get = %v, %v", v, err)
	}
	if calls.Load() != 2 {
		t.Errorf("load ran %d times, want 2", calls.Load())
	}
}

func TestMemo_ConcurrentLoadsCollapse(t *testing.T) {
	var m Memo[int]
	var calls atomic.Int32
	gate := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := m.Get(func() (int, error) {
				calls.Add(1)
				<-gate
				return 42, nil
			})
			if err != nil || v != 42 {
				t.Errorf("Get = %d, %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("load ran %d times, want 1", calls.Load())
	}
}

func TestMemo_Reset(t *testing.T) {
	var m Memo[int]
	m.Get(func() (int, error) { return 1, nil })
	m.Reset()
	if _, ok := m.Cached(); ok {
		t.Fatal("value survived Reset")
	}
	v, _ := m.Get(func() (int, error) { return 2, nil })
	if v != 2 {
		t.Errorf("Get after Reset = %d, want 2", v)
	}
}
