// Package collector records which lazily rendered units executed during
// one server render.
//
// Instrumented components call the reporting hook with their module id as
// the first statement of their render function. The hook looks up the
// request's [Collector] from the context the render was started with:
//
//	c := collector.New(resolver)
//	ctx = collector.NewContext(ctx, c)
//	renderer.Render(ctx, url) // components call collector.Report(ctx, id)
//	assets, err := c.ResolvedAssets(ctx)
//
// A Collector belongs to exactly one request. Never share one between
// requests: assets would leak into unrelated responses.
package collector

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/ssrpreload/pkg/manifest"
	"github.com/matzehuels/ssrpreload/pkg/preload"
)

// Collector is a per-request set of reported module ids.
// It is safe for concurrent use by the boundaries of a single render.
type Collector struct {
	resolver *manifest.Resolver

	mu  sync.Mutex
	ids map[string]struct{}
}

// New creates an empty collector. A nil resolver, or one without a
// manifest, puts the collector in dev mode: ids are still recorded but
// resolve to no assets.
func New(resolver *manifest.Resolver) *Collector {
	return &Collector{
		resolver: resolver,
		ids:      make(map[string]struct{}),
	}
}

// Report records id. Reporting the same id again has no effect.
func (c *Collector) Report(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.ids[id] = struct{}{}
	c.mu.Unlock()
}

// Len returns the number of distinct ids reported so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ids)
}

// IDs returns the reported ids in lexical order.
func (c *Collector) IDs() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.ids))
	for id := range c.ids {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// ResolvedAssets expands the ids reported so far into their assets,
// deduplicated and in preload priority order. Units that report after
// this call are not included.
//
// The result depends only on the set of ids, never on report order.
func (c *Collector) ResolvedAssets(ctx context.Context) ([]preload.Asset, error) {
	if c.resolver.Manifest() == nil {
		return nil, nil
	}
	assets, err := c.resolver.ResolveAll(ctx, c.IDs())
	if err != nil {
		return nil, err
	}
	return preload.Sort(assets), nil
}
