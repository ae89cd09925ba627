package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/zohaib704-ai/Code-sphere/internal/catalog"
	"github.com/zohaib704-ai/Code-sphere/internal/executor"
	"github.com/zohaib704-ai/Code-sphere/internal/ratelimit"
	"github.com/zohaib704-ai/Code-sphere/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	// The response must outlive the longest backend call an execution may make.
	writeTimeout = executor.MaxCallTimeout + 10*time.Second
)

// Server wraps the chi router and application dependencies.
type Server struct {
	router    *chi.Mux
	catalog   *catalog.Cache
	executor  *executor.Executor
	store     store.Store
	limiter   ratelimit.Limiter
	logger    *slog.Logger
	addr      string
	staticDir string
	startedAt time.Time
}

// Option configures optional Server collaborators.
type Option func(*Server)

// WithStore enables the execution history endpoints.
func WithStore(s store.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithRateLimiter limits /api requests per client IP.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(srv *Server) { srv.limiter = l }
}

// WithStaticDir serves the browser UI from dir for non-API paths.
func WithStaticDir(dir string) Option {
	return func(srv *Server) { srv.staticDir = dir }
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, cat *catalog.Cache, exec *executor.Executor, logger *slog.Logger, opts ...Option) *Server {
	srv := &Server{
		router:    chi.NewRouter(),
		catalog:   cat,
		executor:  exec,
		logger:    logger,
		addr:      addr,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.RealIP)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.instrument)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Handle("/metrics", metricsHandler())

	s.router.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(ratelimit.Middleware(s.limiter, s.logger))
		}

		r.Get("/health", s.handleHealth)
		r.Get("/languages", s.handleListLanguages)
		r.Get("/language/{name}", s.handleGetLanguage)
		r.Post("/execute", s.handleExecute)
		r.Post("/execute/batch", s.handleExecuteBatch)

		r.Get("/executions", s.handleListExecutions)
		r.Get("/executions/{id}", s.handleGetExecution)
		r.Get("/stats", s.handleGetStats)

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			s.writeError(w, http.StatusNotFound, "not found")
		})
	})

	if s.staticDir != "" {
		s.router.Get("/*", s.staticHandler())
	}
}

// staticHandler serves files from the static directory.
func (s *Server) staticHandler() http.HandlerFunc {
	fs := http.FileServer(http.Dir(s.staticDir))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		fs.ServeHTTP(w, r)
	}
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the router wrapped in an OpenTelemetry span per request.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "codesphere")
}

func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
func (s *Server) Run() error {
	httpServer := s.newHTTPServer()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// instrument logs and measures every request with one wrapped writer.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		observeRequest(r, ww.Status(), elapsed)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", elapsed.Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
