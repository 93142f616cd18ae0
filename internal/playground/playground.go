// Package playground is a small demo application for the serve command.
//
// The App renders a shell with one lazy boundary. The boundary's Card unit
// takes a while to load the first time, so the first request streams a
// fallback and reports the unit after the shell; later requests render the
// card inline and report it before the shell.
package playground

import (
	"context"
	"embed"
	"fmt"
	"html"
	"io/fs"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ssrpreload/pkg/collector"
	"github.com/matzehuels/ssrpreload/pkg/lazy"
	"github.com/matzehuels/ssrpreload/pkg/stream"
)

// CardID is the module id the Card unit reports.
const CardID = "src/Card.tsx"

// DefaultDelay is how long the Card takes to load.
const DefaultDelay = 300 * time.Millisecond

//go:embed site
var site embed.FS

// Manifest returns the build manifest of the demo client.
func Manifest() []byte {
	data, _ := site.ReadFile("site/manifest.json")
	return data
}

// Template returns the page template of the demo client.
func Template() []byte {
	data, _ := site.ReadFile("site/index.html")
	return data
}

// Static returns the demo client's static files, rooted so that
// "assets/Card-c41d8e.js" is a valid name.
func Static() fs.FS {
	sub, err := fs.Sub(site, "site")
	if err != nil {
		panic(err)
	}
	return sub
}

// Options configures an [App].
type Options struct {
	// Delay defaults to DefaultDelay.
	Delay  time.Duration
	Logger *log.Logger
}

// App is the demo application. It implements stream.Renderer.
type App struct {
	registry *lazy.Registry
	card     *lazy.Unit
	logger   *log.Logger
}

// New creates the App and declares its lazy Card unit.
func New(opts Options) *App {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	a := &App{registry: lazy.NewRegistry(), logger: opts.Logger}
	a.card = a.registry.Lazy(func(ctx context.Context) error {
		t := time.NewTimer(opts.Delay)
		defer t.Stop()
		select {
		case <-t.C:
			a.logger.Debug("lazy unit loaded", "id", CardID)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return a
}

// PreloadAll loads every declared lazy unit so no request sees a fallback.
// It returns how many units were waiting to load.
func (a *App) PreloadAll(ctx context.Context) (int, error) {
	n := a.registry.Pending()
	return n, a.registry.PreloadAll(ctx)
}

// Render implements stream.Renderer.
func (a *App) Render(ctx context.Context, url string) <-chan stream.Event {
	ch := make(chan stream.Event)
	go func() {
		defer close(ch)
		a.render(ctx, url, ch)
	}()
	return ch
}

func (a *App) render(ctx context.Context, url string, ch chan<- stream.Event) {
	send := func(s string) bool {
		return stream.Send(ctx, ch, stream.Event{Kind: stream.EventChunk, Data: []byte(s)})
	}
	signal := func(kind stream.EventKind, err error) bool {
		return stream.Send(ctx, ch, stream.Event{Kind: kind, Err: err})
	}

	if !send(`<main><h1>Playground</h1><p>Rendering ` + html.EscapeString(url) + `</p>`) {
		return
	}

	if a.card.Loaded() {
		if err := a.card.Err(); err != nil {
			signal(stream.EventShellError, err)
			return
		}
		collector.Report(ctx, CardID)
		if send(card(url)+`</main>`) && signal(stream.EventShellReady, nil) {
			signal(stream.EventAllReady, nil)
		}
		return
	}

	if !send(`<div id="B:0"><p>Loading card…</p></div></main>`) || !signal(stream.EventShellReady, nil) {
		return
	}
	if err := a.card.Preload(ctx); err != nil {
		if ctx.Err() == nil {
			signal(stream.EventError, err)
		}
		return
	}
	collector.Report(ctx, CardID)

	nonce := html.EscapeString(stream.NonceFromContext(ctx))
	swap := fmt.Sprintf(`<template id="S:0">%s</template>`+
		`<script nonce="%s">document.getElementById("B:0").replaceWith(document.getElementById("S:0").content)</script>`,
		card(url), nonce)
	if send(swap) {
		signal(stream.EventAllReady, nil)
	}
}

func card(url string) string {
	return `<section class="card"><h2>Card</h2><p>Loaded for ` + html.EscapeString(url) + `</p></section>`
}
