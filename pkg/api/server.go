// Package api serves template validation and package onboarding over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nfvpack/nfvpack/pkg/audit"
	"github.com/nfvpack/nfvpack/pkg/catalog"
	"github.com/nfvpack/nfvpack/pkg/csar"
	"github.com/nfvpack/nfvpack/pkg/util"
)

// Catalog is the package index the server onboards into.
type Catalog interface {
	Connect(ctx context.Context) error
	Onboard(ctx context.Context, d *catalog.Descriptor) (*catalog.Descriptor, bool, error)
	Get(ctx context.Context, name, version string) (*catalog.Descriptor, error)
	Latest(ctx context.Context, name string) (*catalog.Descriptor, error)
	Versions(ctx context.Context, name string) ([]string, error)
	List(ctx context.Context) ([]*catalog.Descriptor, error)
	Delete(ctx context.Context, name, version string) error
}

// Config configures a Server.
type Config struct {
	// Addr is the listen address, ":8080" when empty.
	Addr string
	// MaxTemplateBytes bounds validation request bodies.
	MaxTemplateBytes int64
	// MaxPackageBytes bounds onboarding request bodies.
	MaxPackageBytes int64
	// RequestLimit requests per RateWindow are allowed per client IP.
	RequestLimit int
	RateWindow   time.Duration
	// Strict escalates warnings to errors.
	Strict bool
	// VersionConstraint limits accepted CSAR-Version values.
	VersionConstraint string
	// User is recorded as the actor of audit events.
	User string
	// Audit receives events; the package default logger when nil.
	Audit audit.Logger
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.MaxTemplateBytes <= 0 {
		c.MaxTemplateBytes = 4 << 20
	}
	if c.MaxPackageBytes <= 0 {
		c.MaxPackageBytes = csar.DefaultMaxSize
	}
	if c.RequestLimit <= 0 {
		c.RequestLimit = 120
	}
	if c.RateWindow <= 0 {
		c.RateWindow = time.Minute
	}
	if c.User == "" {
		c.User = "api"
	}
}

// Server is the HTTP front end.
type Server struct {
	cfg     Config
	catalog Catalog
	metrics *Metrics
	router  chi.Router
}

// NewServer builds the router. catalog may be nil, in which case package
// endpoints answer 503.
func NewServer(cfg Config, cat Catalog) *Server {
	cfg.setDefaults()
	s := &Server{cfg: cfg, catalog: cat, metrics: newMetrics()}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics { return s.metrics }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.metrics.middleware)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RequestLimit, s.cfg.RateWindow))
		r.Post("/templates/validate", s.handleValidateTemplate)
		r.Route("/packages", func(r chi.Router) {
			r.Use(s.requireCatalog)
			r.Post("/", s.handleOnboard)
			r.Get("/", s.handleListPackages)
			r.Get("/{name}", s.handleGetPackage)
			r.Get("/{name}/{version}", s.handleGetVersion)
			r.Delete("/{name}/{version}", s.handleDeleteVersion)
		})
	})
	return r
}

// rateLimit limits requests per client IP with a sliding window.
func rateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
		}),
	)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		util.WithRequest(r, middleware.GetReqID(r.Context())).Debugf("Served in %s", time.Since(start))
	})
}

func (s *Server) requireCatalog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.catalog == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "catalog is not configured"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		util.Infof("Listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	util.Infof("Server stopped")
	return nil
}
