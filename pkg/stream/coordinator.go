// Package stream coordinates a streamed server render with asset preloading.
//
// For every request the [Coordinator] allocates a fresh collector, starts
// the render, and moves through
//
//	INIT → RENDERING → SHELL_READY → STREAMING_BODY → DONE | ERRORED
//
// At shell-ready it resolves the collected units into assets, sends the
// Link header, and writes the template head with the asset tags. Body
// chunks are then relayed as they arrive, and the template tail closes the
// document.
package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/ssrpreload/pkg/collector"
	perr "github.com/matzehuels/ssrpreload/pkg/errors"
	"github.com/matzehuels/ssrpreload/pkg/manifest"
	"github.com/matzehuels/ssrpreload/pkg/observability"
	"github.com/matzehuels/ssrpreload/pkg/preload"
)

// State is a step of the per-request lifecycle.
type State int

const (
	StateInit State = iota
	StateRendering
	StateShellReady
	StateStreamingBody
	StateDone
	StateErrored
)

var stateNames = [...]string{
	StateInit:          "INIT",
	StateRendering:     "RENDERING",
	StateShellReady:    "SHELL_READY",
	StateStreamingBody: "STREAMING_BODY",
	StateDone:          "DONE",
	StateErrored:       "ERRORED",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

const (
	// DefaultSettleTimeout bounds the wait for more lazy units when the
	// shell is ready but nothing has been collected yet.
	DefaultSettleTimeout = 50 * time.Millisecond

	// DefaultErrorPage is sent when the render fails before the shell.
	DefaultErrorPage = "<h1>Something went wrong</h1>"
)

// Options configures a [Coordinator].
type Options struct {
	// EarlyHints sends a 103 response with the entry assets to navigation
	// requests before rendering starts.
	EarlyHints bool

	// SettleTimeout defaults to DefaultSettleTimeout. A negative value
	// disables the wait.
	SettleTimeout time.Duration

	// ErrorPage defaults to DefaultErrorPage.
	ErrorPage string

	// Preload controls tag and Link header serialization.
	Preload preload.Options

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Outcome summarizes one served request.
type Outcome struct {
	State State
	// Err is set when State is StateErrored.
	Err error
	// Collected are the unit ids reported up to the head flush.
	Collected []string
	// Assets were emitted in the head and the Link header.
	Assets []preload.Asset
	// Bytes is the number of body bytes written.
	Bytes int64
}

// Coordinator serves rendered pages. It is safe for concurrent use; all
// per-request state lives in Serve.
type Coordinator struct {
	tmpl     *Template
	renderer Renderer
	resolver *manifest.Resolver
	opts     Options
	logger   *log.Logger
}

// NewCoordinator creates a coordinator. A nil resolver serves in dev mode
// without preloads.
func NewCoordinator(tmpl *Template, renderer Renderer, resolver *manifest.Resolver, opts Options) *Coordinator {
	if opts.SettleTimeout == 0 {
		opts.SettleTimeout = DefaultSettleTimeout
	}
	if opts.ErrorPage == "" {
		opts.ErrorPage = DefaultErrorPage
	}
	if opts.Preload.Base == "" {
		opts.Preload.Base = "/"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Coordinator{
		tmpl:     tmpl,
		renderer: renderer,
		resolver: resolver,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// ServeHTTP implements http.Handler.
func (c *Coordinator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.Serve(w, r)
}

// response is the state of one request.
type response struct {
	c      *Coordinator
	w      http.ResponseWriter
	rc     *http.ResponseController
	nonce  string
	url    string
	began  time.Time
	out    Outcome
	shell  [][]byte
	events <-chan Event
}

// Serve renders r into w and reports how the response ended.
func (c *Coordinator) Serve(w http.ResponseWriter, r *http.Request) Outcome {
	began := time.Now()
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	resp := &response{
		c:     c,
		w:     w,
		rc:    http.NewResponseController(w),
		nonce: NonceFromContext(r.Context()),
		url:   r.URL.RequestURI(),
		began: began,
	}
	observability.Render().OnRenderStart(ctx, resp.url)

	col := collector.New(c.resolver)
	navigation := IsNavigation(r)
	if c.opts.EarlyHints && navigation {
		c.earlyHints(ctx, w)
	}

	resp.events = c.renderer.Render(collector.NewContext(ctx, col), resp.url)
	resp.out.State = StateRendering
	defer func() {
		// Unblock a renderer that ignores cancellation.
		go func() {
			for range resp.events {
			}
		}()
	}()

	resp.run(ctx, col, navigation)

	if resp.out.State == StateErrored {
		if perr.Is(resp.out.Err, perr.ErrCodeCanceled) {
			c.logger.Debug("client went away", "url", resp.url, "after", resp.out.Bytes)
		} else {
			c.logger.Error("render failed", "url", resp.url, "state", resp.out.State, "error", resp.out.Err)
		}
	}
	observability.Render().OnRenderComplete(ctx, resp.url, resp.out.State.String(), time.Since(began), resp.out.Err)
	return resp.out
}

func (c *Coordinator) earlyHints(ctx context.Context, w http.ResponseWriter) {
	assets, err := c.resolver.EntryAssets(ctx)
	if err != nil || len(assets) == 0 {
		return
	}
	link := c.opts.Preload.LinkHeader(preload.Sort(assets))
	if link == "" {
		return
	}
	w.Header().Set("Link", link)
	w.WriteHeader(http.StatusEarlyHints)
	w.Header().Del("Link")
}

func (s *response) run(ctx context.Context, col *collector.Collector, navigation bool) {
	done, err := s.awaitShell(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	s.out.State = StateShellReady

	assets, err := col.ResolvedAssets(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	if len(assets) == 0 && navigation && !done && s.c.opts.SettleTimeout > 0 {
		if done, err = s.settle(ctx); err != nil {
			s.fail(err)
			return
		}
		if assets, err = col.ResolvedAssets(ctx); err != nil {
			s.fail(err)
			return
		}
	}
	s.out.Collected = col.IDs()
	s.out.Assets = assets

	if err := s.writeHead(); err != nil {
		s.abort(err)
		return
	}
	observability.Render().OnShellReady(ctx, s.url, len(assets), time.Since(s.began))

	s.out.State = StateStreamingBody
	if !done {
		if err := s.relay(ctx); err != nil {
			s.abort(err)
			return
		}
	}
	if err := s.write([]byte(s.c.tmpl.Tail(s.nonce))); err != nil {
		s.abort(err)
		return
	}
	s.flush()
	s.out.State = StateDone
}

// awaitShell buffers chunks until the shell is ready. It reports done when
// the render finished before signaling shell-ready.
func (s *response) awaitShell(ctx context.Context) (done bool, err error) {
	for {
		select {
		case <-ctx.Done():
			return false, perr.Wrap(perr.ErrCodeCanceled, ctx.Err(), "request canceled before shell")
		case ev, ok := <-s.events:
			if !ok {
				return true, nil
			}
			switch ev.Kind {
			case EventChunk:
				s.shell = append(s.shell, ev.Data)
			case EventShellReady, EventAllReady:
				return false, nil
			case EventShellError, EventError:
				return false, renderError(ev.Err)
			}
		}
	}
}

// settle keeps buffering for a bounded time so late lazy units can report
// before the head is finalized.
func (s *response) settle(ctx context.Context) (done bool, err error) {
	timer := time.NewTimer(s.c.opts.SettleTimeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, perr.Wrap(perr.ErrCodeCanceled, ctx.Err(), "request canceled before shell")
		case <-timer.C:
			return false, nil
		case ev, ok := <-s.events:
			if !ok {
				return true, nil
			}
			switch ev.Kind {
			case EventChunk:
				s.shell = append(s.shell, ev.Data)
			case EventAllReady:
				return false, nil
			case EventShellError, EventError:
				return false, renderError(ev.Err)
			}
		}
	}
}

func (s *response) writeHead() error {
	h := s.w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	if link := s.c.opts.Preload.LinkHeader(s.out.Assets); link != "" {
		h.Set("Link", link)
	}
	s.w.WriteHeader(http.StatusOK)

	head := s.c.tmpl.Head(s.c.opts.Preload.HTMLTags(s.out.Assets, s.nonce), s.nonce)
	if err := s.write([]byte(head)); err != nil {
		return err
	}
	for _, chunk := range s.shell {
		if err := s.write(chunk); err != nil {
			return err
		}
	}
	s.shell = nil
	s.flush()
	return nil
}

// relay forwards body chunks in order until the render ends.
func (s *response) relay(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return perr.Wrap(perr.ErrCodeCanceled, ctx.Err(), "request canceled while streaming")
		case ev, ok := <-s.events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case EventChunk:
				if err := s.write(ev.Data); err != nil {
					return err
				}
				s.flush()
			case EventShellError, EventError:
				return renderError(ev.Err)
			}
		}
	}
}

func (s *response) write(p []byte) error {
	n, err := s.w.Write(p)
	s.out.Bytes += int64(n)
	if err != nil {
		return perr.Wrap(perr.ErrCodeCanceled, err, "write response")
	}
	return nil
}

func (s *response) flush() {
	if err := s.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.c.logger.Debug("flush failed", "url", s.url, "error", err)
	}
}

// fail handles errors before anything was written: the buffered shell is
// discarded and the error page sent instead.
func (s *response) fail(err error) {
	s.out.State = StateErrored
	s.out.Err = err
	s.shell = nil
	if perr.Is(err, perr.ErrCodeCanceled) {
		return
	}
	h := s.w.Header()
	h.Del("Link")
	h.Set("Content-Type", "text/html; charset=utf-8")
	s.w.WriteHeader(http.StatusInternalServerError)
	_, _ = s.w.Write([]byte(s.c.opts.ErrorPage))
}

// abort handles errors after the head was sent. Status and headers are
// already on the wire, so the document is closed with the template tail
// and the stream ends.
func (s *response) abort(err error) {
	s.out.State = StateErrored
	s.out.Err = err
	if perr.Is(err, perr.ErrCodeCanceled) {
		return
	}
	_, _ = s.w.Write([]byte(s.c.tmpl.Tail(s.nonce)))
	s.flush()
}

func renderError(err error) error {
	if err == nil {
		err = errors.New("renderer reported an error")
	}
	return perr.Wrap(perr.ErrCodeRender, err, "render")
}
