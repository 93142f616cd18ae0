// Package observability provides hooks for metrics, tracing, and logging.
//
// Nothing in the preload pipeline depends on a particular metrics backend.
// Consumers register hooks at startup and receive events about resolution,
// instrumentation, rendering, and cache traffic:
//
//	func main() {
//	    observability.SetRenderHooks(&myRenderHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run server
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Resolve().OnResolve(ctx, id, len(assets), time.Since(start))
//
// Every category defaults to a no-op implementation.
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Resolve Hooks
// =============================================================================

// ResolveHooks receives events from the manifest graph resolver.
type ResolveHooks interface {
	// OnResolve records one module id resolved to assetCount assets.
	OnResolve(ctx context.Context, id string, assetCount int, duration time.Duration)

	// OnGraphGap records a module id that is not present in the manifest.
	OnGraphGap(ctx context.Context, id string)
}

// =============================================================================
// Instrument Hooks
// =============================================================================

// InstrumentHooks receives events from the build-time instrumentation pass.
type InstrumentHooks interface {
	// OnLazyTarget records a lazy import discovered in file.
	OnLazyTarget(ctx context.Context, file, target string)

	// OnTransform records one file transformed. injected reports whether the
	// collect call was added.
	OnTransform(ctx context.Context, file string, injected bool, err error)
}

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the streaming coordinator.
type RenderHooks interface {
	// OnRenderStart records the start of a page render.
	OnRenderStart(ctx context.Context, url string)

	// OnShellReady records the moment the head was flushed.
	OnShellReady(ctx context.Context, url string, assetCount int, duration time.Duration)

	// OnRenderComplete records the terminal state of a response.
	OnRenderComplete(ctx context.Context, url, state string, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopResolveHooks is a no-op implementation of ResolveHooks.
type NoopResolveHooks struct{}

func (NoopResolveHooks) OnResolve(context.Context, string, int, time.Duration) {}
func (NoopResolveHooks) OnGraphGap(context.Context, string)                    {}

// NoopInstrumentHooks is a no-op implementation of InstrumentHooks.
type NoopInstrumentHooks struct{}

func (NoopInstrumentHooks) OnLazyTarget(context.Context, string, string)     {}
func (NoopInstrumentHooks) OnTransform(context.Context, string, bool, error) {}

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnRenderStart(context.Context, string)                    {}
func (NoopRenderHooks) OnShellReady(context.Context, string, int, time.Duration) {}
func (NoopRenderHooks) OnRenderComplete(context.Context, string, string, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	resolveHooks    ResolveHooks    = NoopResolveHooks{}
	instrumentHooks InstrumentHooks = NoopInstrumentHooks{}
	renderHooks     RenderHooks     = NoopRenderHooks{}
	cacheHooks      CacheHooks      = NoopCacheHooks{}
	hooksMu         sync.RWMutex
)

// SetResolveHooks registers custom resolve hooks. A nil argument is ignored.
func SetResolveHooks(h ResolveHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		resolveHooks = h
	}
}

// SetInstrumentHooks registers custom instrument hooks. A nil argument is ignored.
func SetInstrumentHooks(h InstrumentHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		instrumentHooks = h
	}
}

// SetRenderHooks registers custom render hooks. A nil argument is ignored.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. A nil argument is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Resolve returns the registered resolve hooks.
func Resolve() ResolveHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return resolveHooks
}

// Instrument returns the registered instrument hooks.
func Instrument() InstrumentHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return instrumentHooks
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	resolveHooks = NoopResolveHooks{}
	instrumentHooks = NoopInstrumentHooks{}
	renderHooks = NoopRenderHooks{}
	cacheHooks = NoopCacheHooks{}
}
