package manifest

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/matzehuels/ssrpreload/pkg/cache"
	"github.com/matzehuels/ssrpreload/pkg/observability"
	"github.com/matzehuels/ssrpreload/pkg/preload"
)

// Options configures a [Resolver].
type Options struct {
	// IncludeEntrypoint emits the page entry chunk as an entry module
	// together with its stylesheets. When false the entry chunk contributes
	// nothing, since the page template already declares it, but its imports
	// are still followed.
	IncludeEntrypoint bool

	// Entry names the designated page entry. Chunks flagged isEntry are
	// always treated as entries.
	Entry string

	// PreloadAssets emits generic preloads for static files (fonts, images)
	// listed under a chunk's "assets".
	PreloadAssets bool

	// Logger receives graph gap and cache diagnostics. Defaults to log.Default().
	Logger *log.Logger

	// Cache memoizes resolutions. Nil disables caching.
	Cache cache.Cache

	// Keyer builds cache keys. Defaults to cache.NewDefaultKeyer().
	Keyer cache.Keyer

	// TTL for cached resolutions. Defaults to cache.DefaultTTL.
	TTL time.Duration
}

// Resolver expands module ids into their transitive asset closure.
// It holds no per-request state and is safe for concurrent use.
//
// A Resolver without a manifest (dev mode) resolves everything to nothing.
type Resolver struct {
	m      *Manifest
	opts   Options
	logger *log.Logger
}

// NewResolver creates a resolver over m. A nil manifest yields a dev-mode
// resolver.
func NewResolver(m *Manifest, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Keyer == nil {
		opts.Keyer = cache.NewDefaultKeyer()
	}
	if opts.TTL == 0 {
		opts.TTL = cache.DefaultTTL
	}
	return &Resolver{m: m, opts: opts, logger: opts.Logger}
}

// Manifest returns the underlying manifest, or nil in dev mode.
func (r *Resolver) Manifest() *Manifest {
	if r == nil {
		return nil
	}
	return r.m
}

// Resolve returns the deduplicated assets required by id: the stylesheets
// of every chunk reachable through static imports, then their files, then
// their static assets. Dynamic imports are not followed. An id missing
// from the manifest resolves to nothing.
func (r *Resolver) Resolve(ctx context.Context, id string) ([]preload.Asset, error) {
	if r == nil || r.m == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.resolve(ctx, normalize(id), r.opts.IncludeEntrypoint)
}

// ResolveAll resolves every id and merges the results, keeping the first
// occurrence of each asset.
func (r *Resolver) ResolveAll(ctx context.Context, ids []string) ([]preload.Asset, error) {
	set := preload.NewSet()
	for _, id := range ids {
		assets, err := r.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		set.AddAll(assets)
	}
	return set.Assets(), nil
}

// EntryAssets resolves the page entry chunks with entrypoint inclusion
// forced on. These are known before rendering starts and back early hints.
func (r *Resolver) EntryAssets(ctx context.Context) ([]preload.Asset, error) {
	if r == nil || r.m == nil {
		return nil, nil
	}
	entries := r.m.Entries()
	if r.opts.Entry != "" {
		entries = append(entries, r.opts.Entry)
	}
	set := preload.NewSet()
	for _, id := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		assets, err := r.resolve(ctx, normalize(id), true)
		if err != nil {
			return nil, err
		}
		set.AddAll(assets)
	}
	return set.Assets(), nil
}

func (r *Resolver) resolve(ctx context.Context, id string, includeEntry bool) ([]preload.Asset, error) {
	start, ok := r.m.index[id]
	if !ok {
		r.gap(ctx, id, "")
		return nil, nil
	}

	key := r.opts.Keyer.ResolveKey(r.m.hash, id, cache.ResolveKeyOpts{
		IncludeEntrypoint: includeEntry,
		PreloadAssets:     r.opts.PreloadAssets,
		Entry:             r.opts.Entry,
	})
	if assets, ok := r.cached(ctx, key); ok {
		return assets, nil
	}

	began := time.Now()
	order := r.walk(ctx, start)

	set := preload.NewSet()
	for _, n := range order {
		if r.isEntry(n) && !includeEntry {
			continue
		}
		for _, css := range r.m.chunks[n].CSS {
			set.Add(preload.Asset{
				Kind:    preload.KindStylesheet,
				Href:    css,
				Comment: "Stylesheet imported by " + r.m.ids[n],
			})
		}
	}
	for _, n := range order {
		c := r.m.chunks[n]
		if r.isEntry(n) {
			if !includeEntry {
				continue
			}
			set.Add(preload.Asset{
				Kind:    preload.KindEntryModule,
				Href:    c.File,
				Comment: "Entry " + r.m.ids[n],
				IsEntry: true,
			})
			continue
		}
		set.Add(preload.Asset{
			Kind:    preload.KindModulePreload,
			Href:    c.File,
			Comment: "Chunk imported by " + r.m.ids[n],
		})
	}
	if r.opts.PreloadAssets {
		for _, n := range order {
			for _, f := range r.m.chunks[n].Assets {
				if a, ok := preload.AssetForFile(f, "Asset imported by "+r.m.ids[n]); ok {
					set.Add(a)
				}
			}
		}
	}

	assets := set.Assets()
	observability.Resolve().OnResolve(ctx, id, len(assets), time.Since(began))
	r.store(ctx, key, assets)
	return assets, nil
}

// walk returns the chunks reachable from start in depth-first preorder,
// visiting each chunk once.
func (r *Resolver) walk(ctx context.Context, start int) []int {
	visited := make([]bool, len(r.m.chunks))
	stack := []int{start}
	var order []int
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		order = append(order, n)

		edges := r.m.edges[n]
		for i := len(edges) - 1; i >= 0; i-- {
			e := edges[i]
			if e.to < 0 {
				r.gap(ctx, e.id, r.m.ids[n])
				continue
			}
			if !visited[e.to] {
				stack = append(stack, e.to)
			}
		}
	}
	return order
}

func (r *Resolver) isEntry(n int) bool {
	return r.m.chunks[n].IsEntry || (r.opts.Entry != "" && r.m.ids[n] == normalize(r.opts.Entry))
}

func (r *Resolver) gap(ctx context.Context, id, importer string) {
	if importer == "" {
		r.logger.Debug("module not in manifest", "id", id)
	} else {
		r.logger.Debug("import not in manifest", "id", id, "importer", importer)
	}
	observability.Resolve().OnGraphGap(ctx, id)
}

func (r *Resolver) cached(ctx context.Context, key string) ([]preload.Asset, bool) {
	if r.opts.Cache == nil {
		return nil, false
	}
	data, ok, err := r.opts.Cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		observability.Cache().OnCacheMiss(ctx, "resolve")
		return nil, false
	}
	var assets []preload.Asset
	if err := msgpack.Unmarshal(data, &assets); err != nil {
		r.logger.Warn("discarding corrupt cache entry", "error", err)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, "resolve")
	return assets, true
}

func (r *Resolver) store(ctx context.Context, key string, assets []preload.Asset) {
	if r.opts.Cache == nil {
		return
	}
	data, err := msgpack.Marshal(assets)
	if err != nil {
		r.logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := r.opts.Cache.Set(ctx, key, data, r.opts.TTL); err != nil {
		r.logger.Warn("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "resolve", len(data))
}
