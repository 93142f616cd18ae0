// Package server wires the HTTP surface: a chi router serving static client
// assets under the base path and streaming every other page through a
// [stream.Coordinator].
package server

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ShutdownTimeout bounds graceful shutdown in [Server.Run].
const ShutdownTimeout = 10 * time.Second

// Options configures a [Server].
type Options struct {
	// Pages renders every request that is not a static asset.
	Pages http.Handler
	// Static holds the client build output. Nil disables static serving.
	Static fs.FS
	// Base is the public path the client assets are served under.
	Base string
	// Logger defaults to log.Default().
	Logger *log.Logger
}

// Server is the SSR HTTP server.
type Server struct {
	router chi.Router
	logger *log.Logger
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	base := "/" + strings.Trim(opts.Base, "/")
	if base != "/" {
		base += "/"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID(opts.Logger))
	r.Use(accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})

	if opts.Static != nil {
		static := http.StripPrefix(strings.TrimSuffix(base, "/"), http.FileServer(http.FS(opts.Static)))
		r.Handle(base+"assets/*", immutable(static))
	}

	pages := contentSecurity(opts.Pages)
	r.Get("/*", pages.ServeHTTP)
	r.Head("/*", pages.ServeHTTP)

	return &Server{router: r, logger: opts.Logger}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// immutable marks hashed build assets as cacheable forever.
func immutable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		next.ServeHTTP(w, r)
	})
}
