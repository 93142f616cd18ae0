// Package lazy tracks lazily loaded units so a server can load all of them
// before rendering, instead of streaming fallbacks for code that is already
// on disk.
//
// Each unit registers a load function. [Registry.PreloadAll] loads every
// pending unit concurrently; units registered while loading (a lazy unit
// that itself declares lazy children) are picked up by the next round.
package lazy

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// MaxDepth bounds the number of PreloadAll rounds.
const MaxDepth = 3

// LoadFunc loads one unit.
type LoadFunc func(ctx context.Context) error

// Unit is a lazily loaded unit. Its load function runs at most once.
type Unit struct {
	load LoadFunc

	once sync.Once
	done chan struct{}
	err  error
}

// Preload runs the load function if it has not run yet and waits for it.
// Concurrent callers share a single load, which is not canceled when the
// caller that started it gives up.
func (u *Unit) Preload(ctx context.Context) error {
	u.once.Do(func() {
		go func() {
			defer close(u.done)
			u.err = u.load(context.WithoutCancel(ctx))
		}()
	})
	select {
	case <-u.done:
		return u.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loaded reports whether the load function has finished.
func (u *Unit) Loaded() bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

// Err returns the load error once Loaded is true.
func (u *Unit) Err() error {
	if !u.Loaded() {
		return nil
	}
	return u.err
}

// Registry holds units that have been declared but not yet preloaded.
type Registry struct {
	mu      sync.Mutex
	pending []*Unit
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Lazy declares a unit and queues it for the next PreloadAll round.
func (r *Registry) Lazy(load LoadFunc) *Unit {
	u := &Unit{load: load, done: make(chan struct{})}
	r.mu.Lock()
	r.pending = append(r.pending, u)
	r.mu.Unlock()
	return u
}

// Pending returns the number of units waiting for a PreloadAll round.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// PreloadAll loads every pending unit, repeating for units registered
// during a round, up to MaxDepth rounds. It returns the first load error.
func (r *Registry) PreloadAll(ctx context.Context) error {
	for depth := 0; depth < MaxDepth; depth++ {
		r.mu.Lock()
		batch := r.pending
		r.pending = nil
		r.mu.Unlock()

		if len(batch) == 0 {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, u := range batch {
			g.Go(func() error { return u.Preload(gctx) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}
