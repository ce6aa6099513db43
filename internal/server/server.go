// Package server exposes recipe compilation, workspaces, execution and the
// schema registry over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/wrangle/internal/engine"
	"github.com/leapstack-labs/wrangle/internal/workspace"
)

// maxBodySize bounds request bodies, including uploaded workspace data.
const maxBodySize = 64 << 20

// Server is the HTTP service.
type Server struct {
	addr      string
	namespace string
	engine    *engine.Engine
	store     *workspace.Store
	notifier  *Notifier
	logger    *slog.Logger
}

// Config holds configuration for the server.
type Config struct {
	Addr      string
	Namespace string // used when a request names none
	Engine    *engine.Engine
	Store     *workspace.Store
	Logger    *slog.Logger
}

// New creates a server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "default"
	}
	eng := cfg.Engine
	if eng == nil {
		eng = engine.New(engine.Config{Logger: logger})
	}
	return &Server{
		addr:      cfg.Addr,
		namespace: namespace,
		engine:    eng,
		store:     cfg.Store,
		notifier:  NewNotifier(),
		logger:    logger,
	}
}

// Notifier returns the workspace event notifier.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/health", s.handleHealth)
	r.Get("/directives", s.handleDirectives)
	r.Post("/compile", s.handleCompile)
	r.Get("/events", s.handleEvents)

	r.Route("/workspaces", func(r chi.Router) {
		r.Get("/", s.handleListWorkspaces)
		r.Post("/", s.handleCreateWorkspace)
		r.Delete("/", s.handleDeleteScope)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetWorkspace)
			r.Delete("/", s.handleDeleteWorkspace)
			r.Get("/data", s.handleGetData)
			r.Put("/data", s.handlePutData)
			r.Put("/recipe", s.handlePutRecipe)
			r.Put("/properties", s.handlePutProperties)
			r.Post("/execute", s.handleExecute)
		})
	})
	r.Route("/schemas", s.schemaRoutes)

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting server", "addr", "http://"+ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
