// Package pkg provides the libraries behind ssrpreload, which preloads the
// lazily loaded chunks a server render actually used.
//
// # Overview
//
// A streamed server render only discovers which lazy units it needs while
// it runs. Without help, the browser finds their chunks after hydration
// starts and fetches them in a waterfall. ssrpreload closes that gap in
// three steps:
//
//  1. [instrument] - at build time, find every lazy-load declaration and
//     make the target's default export report its module id when rendered.
//  2. [collector] - at request time, record the ids reported during one
//     render.
//  3. [stream] - at shell-ready, resolve those ids through the build
//     manifest ([manifest]) and emit the assets ([preload]) as a Link header
//     and as tags before </head>, then stream the rest of the body.
//
// # Architecture
//
//	source tree
//	     ↓
//	[instrument] Pass (scan → resolve targets → inject → source maps)
//	     ↓
//	bundler build → manifest.json
//	     ↓
//	[manifest] Resolver ← [cache] (memory, file, redis)
//	     ↑
//	[collector] per request ← collector.Report(ctx, id)
//	     ↑
//	[stream] Coordinator (INIT → RENDERING → SHELL_READY → STREAMING_BODY → DONE)
//
// # Quick Start
//
//	m, _ := manifest.Load("dist/client/.vite/manifest.json")
//	tmpl, _ := stream.LoadTemplate("dist/client/index.html")
//	resolver := manifest.NewResolver(m, manifest.Options{PreloadAssets: true})
//	http.Handle("/", stream.NewCoordinator(tmpl, renderer, resolver, stream.Options{}))
//
// The renderer calls collector.Report(ctx, id) for every lazy unit it
// renders; instrumented code does this through the injected hook.
//
// # Supporting Packages
//
// [config] - TOML configuration for the serve, resolve, and instrument
// commands.
//
// [cache] - null, memory, file, and Redis backends for resolved asset lists.
//
// [lazy] - a registry of lazy units with PreloadAll, so a server can load
// every declared unit before rendering.
//
// [errors] - coded errors. CONFIGURATION and RESOLUTION are fatal at startup
// or build time; everything at request time is recovered from.
//
// [observability] - hooks for resolve, instrument, render, and cache events.
//
// # Testing
//
//	go test ./...                 # All tests
//	go test ./pkg/instrument/...  # Specific package
//	go test -run Example ./pkg/... # Examples only
//
// [instrument]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/instrument
// [collector]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/collector
// [stream]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/stream
// [manifest]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/manifest
// [preload]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/preload
// [cache]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/config
// [lazy]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/lazy
// [errors]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/ssrpreload/pkg/observability
package pkg
