package server

import (
	"context"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ssrpreload/internal/playground"
	"github.com/matzehuels/ssrpreload/pkg/cache"
	"github.com/matzehuels/ssrpreload/pkg/collector"
	"github.com/matzehuels/ssrpreload/pkg/config"
	"github.com/matzehuels/ssrpreload/pkg/manifest"
	"github.com/matzehuels/ssrpreload/pkg/preload"
	"github.com/matzehuels/ssrpreload/pkg/stream"
)

// App is a server assembled from configuration.
type App struct {
	*Server
	Coordinator *stream.Coordinator
	Resolver    *manifest.Resolver
	Playground  *playground.App
	cache       cache.Cache
}

// Close releases the resolution cache.
func (a *App) Close() error {
	return a.cache.Close()
}

// Build loads the manifest, template, and cache named by cfg and assembles
// the server. Configuration errors are returned before anything listens.
// When renderer is nil, the playground app is used if enabled and an
// empty-body renderer otherwise.
func Build(ctx context.Context, cfg config.Config, renderer stream.Renderer, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	app := &App{}

	var (
		tmpl   *stream.Template
		static fs.FS
		err    error
	)
	if cfg.Server.Playground {
		app.Playground = playground.New(playground.Options{Logger: logger})
		tmpl, err = stream.ParseTemplate(playground.Template())
		static = playground.Static()
	} else {
		tmpl, err = stream.LoadTemplate(cfg.Template.Path)
		static = os.DirFS(cfg.Server.StaticDir)
	}
	if err != nil {
		return nil, err
	}

	var m *manifest.Manifest
	switch {
	case cfg.Manifest.Dev:
		logger.Warn("dev mode: preloads disabled")
	case cfg.Server.Playground:
		if m, err = manifest.Parse(playground.Manifest()); err != nil {
			return nil, err
		}
	default:
		if m, err = manifest.Load(cfg.Manifest.Path); err != nil {
			return nil, err
		}
	}

	if app.cache, err = cfg.Cache.OpenCache(ctx); err != nil {
		return nil, err
	}
	if m != nil {
		app.Resolver = manifest.NewResolver(m, manifest.Options{
			IncludeEntrypoint: cfg.Preload.IncludeEntrypoint,
			Entry:             cfg.Preload.Entry,
			PreloadAssets:     cfg.Preload.PreloadAssets,
			Logger:            logger,
			Cache:             app.cache,
			Keyer:             cfg.Cache.Keyer(),
			TTL:               cfg.Cache.TTL.Std(),
		})
		logger.Info("manifest loaded", "chunks", m.Len(), "entries", len(m.Entries()))
	}

	if cfg.Preload.StrictContext {
		collector.SetMissingPolicy(collector.MissingPanic)
	}
	collector.SetLogger(logger)

	if renderer == nil {
		if app.Playground != nil {
			renderer = app.Playground
		} else {
			renderer = shellOnly
		}
	}

	settle := cfg.Preload.SettleTimeout.Std()
	if settle == 0 {
		settle = -1
	}
	app.Coordinator = stream.NewCoordinator(tmpl, renderer, app.Resolver, stream.Options{
		EarlyHints:    cfg.Preload.EarlyHints,
		SettleTimeout: settle,
		ErrorPage:     cfg.Preload.ErrorPage,
		Preload:       preload.Options{Base: cfg.Server.Base, AsyncEntry: cfg.Preload.AsyncEntry},
		Logger:        logger,
	})

	app.Server = New(Options{
		Pages:  app.Coordinator,
		Static: static,
		Base:   cfg.Server.Base,
		Logger: logger,
	})
	return app, nil
}

// shellOnly renders an empty body, leaving the page to the client entry.
var shellOnly = stream.RendererFunc(func(ctx context.Context, _ string) <-chan stream.Event {
	ch := make(chan stream.Event)
	go func() {
		defer close(ch)
		stream.Send(ctx, ch, stream.Event{Kind: stream.EventShellReady})
	}()
	return ch
})
