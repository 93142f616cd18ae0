package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPreloadOnce(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry()
	u := r.Lazy(func(context.Context) error {
		calls.Add(1)
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := u.Preload(context.Background()); err != nil {
				t.Errorf("Preload: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("load ran %d times, want 1", n)
	}
	if !u.Loaded() {
		t.Error("Loaded() = false after Preload")
	}
}

func TestPreloadAllNested(t *testing.T) {
	r := NewRegistry()
	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	var child *Unit
	parent := r.Lazy(func(context.Context) error {
		record("parent")
		child = r.Lazy(func(context.Context) error {
			record("child")
			return nil
		})
		return nil
	})

	if err := r.PreloadAll(context.Background()); err != nil {
		t.Fatalf("PreloadAll: %v", err)
	}
	if !parent.Loaded() || child == nil || !child.Loaded() {
		t.Fatal("nested unit was not loaded")
	}
	if len(order) != 2 || order[0] != "parent" || order[1] != "child" {
		t.Errorf("order = %v", order)
	}
	if r.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", r.Pending())
	}
}

func TestPreloadAllDepthLimit(t *testing.T) {
	r := NewRegistry()
	var rounds atomic.Int32
	var declare func() *Unit
	declare = func() *Unit {
		return r.Lazy(func(context.Context) error {
			rounds.Add(1)
			declare()
			return nil
		})
	}
	declare()

	if err := r.PreloadAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := rounds.Load(); n != MaxDepth {
		t.Errorf("rounds = %d, want %d", n, MaxDepth)
	}
	if r.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", r.Pending())
	}
}

func TestPreloadAllError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	u := r.Lazy(func(context.Context) error { return boom })
	r.Lazy(func(context.Context) error { return nil })

	if err := r.PreloadAll(context.Background()); !errors.Is(err, boom) {
		t.Errorf("PreloadAll = %v, want boom", err)
	}
	if !errors.Is(u.Err(), boom) {
		t.Errorf("Err = %v, want boom", u.Err())
	}
}

func TestPreloadCanceled(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	u := r.Lazy(func(context.Context) error {
		<-release
		return nil
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := u.Preload(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Preload = %v, want context.Canceled", err)
	}
	if u.Err() != nil {
		t.Error("Err should be nil before load finishes")
	}
}

func TestPreloadSurvivesCallerCancel(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	u := r.Lazy(func(ctx context.Context) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = u.Preload(ctx)
	close(release)

	if err := u.Preload(context.Background()); err != nil {
		t.Errorf("second Preload = %v, want nil", err)
	}
}
