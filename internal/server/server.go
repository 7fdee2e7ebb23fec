// Package server assembles the HTTP shell around the page router: middleware, health and
// metrics endpoints, the sitemap, static assets, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dpotapov/toolsite/internal/config"
	"github.com/dpotapov/toolsite/pages"
	"github.com/dpotapov/toolsite/views"
)

// Reserved paths served by the shell in front of the page router.
const (
	HealthPath  = "/_pages/healthz"
	MetricsPath = "/_pages/metrics"
	SitemapPath = "/sitemap.xml"
	AssetsPath  = "/assets"
)

// Server is the site's HTTP server.
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	handler  http.Handler
	http     *http.Server
}

// New wires the route table, views and shell into an HTTP server.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, errors.New("server: logger is required")
	}

	routes, err := views.Routes()
	if err != nil {
		return nil, fmt.Errorf("build route table: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := pages.NewMetrics(pages.WithRegistry(registry))

	assets := pages.NewAssetRegistry(AssetsPath, logger)
	if err := views.RegisterAssets(assets); err != nil {
		return nil, fmt.Errorf("register assets: %w", err)
	}
	live := cfg.Live.IsEnabled()
	if live {
		if err := pages.RegisterLiveClient(assets); err != nil {
			return nil, fmt.Errorf("register live client: %w", err)
		}
	}

	failure, err := views.NewFailure(cfg.Site.Debug)
	if err != nil {
		return nil, err
	}
	layout, err := views.NewLayout(assets, live)
	if err != nil {
		return nil, err
	}

	sitemap, err := pages.SitemapHandler(routes, cfg.Site.BaseURL)
	if err != nil {
		return nil, err
	}

	router := &pages.Router{
		Routes:   routes,
		Fallback: failure,
		Vars:     map[string]any{"site": cfg.Site.Vars()},
		Logger:   logger,
		Metrics:  metrics,
	}

	ph := &pages.Handler{
		Router:           router,
		Shell:            layout,
		Live:             live,
		LiveReadLimit:    cfg.Live.ReadLimitBytes(),
		LiveWriteTimeout: cfg.Live.WriteTimeoutDuration(),
		Logger:           logger,
		Metrics:          metrics,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle(MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Handle(SitemapPath, sitemap)
	r.Handle(AssetsPath+"/*", assets.Fallback(ph))
	r.Handle("/*", ph)

	return &Server{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		handler:  r,
		http: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      r,
			ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
			WriteTimeout: cfg.Server.WriteTimeoutDuration(),
			IdleTimeout:  cfg.Server.IdleTimeoutDuration(),
		},
	}, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Registry returns the Prometheus registry the server reports to.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Run serves until ctx is canceled, then shuts down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeoutDuration())
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}

// RequestLogger logs every request once it completes.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
