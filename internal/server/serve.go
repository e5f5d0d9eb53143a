package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/manhwatrack/internal/auth"
	"github.com/desertthunder/manhwatrack/internal/catalog"
	"github.com/desertthunder/manhwatrack/internal/metrics"
	"github.com/desertthunder/manhwatrack/internal/proxy"
	"github.com/desertthunder/manhwatrack/internal/repositories"
	"github.com/desertthunder/manhwatrack/internal/session"
	"github.com/desertthunder/manhwatrack/internal/shared"
	"github.com/desertthunder/manhwatrack/internal/tasks"
	"github.com/desertthunder/manhwatrack/internal/web"
)

const (
	shutdownTimeout = 10 * time.Second
	gaugeInterval   = 15 * time.Second
)

// Options wires a [Server].
type Options struct {
	Config  *shared.Config
	Store   *repositories.Store
	Catalog *catalog.Client // nil disables the catalog proxy and id-only adds
	Metrics *metrics.Metrics
	Logger  *log.Logger
}

// Server is the library web service: JSON API, proxies, metrics, and the app shell.
type Server struct {
	addr     string
	router   *BasicRouter
	registry *session.Registry
	metrics  *metrics.Metrics
	logger   *log.Logger
	http     *http.Server
}

// New assembles the routes described by opts.
func New(opts Options) *Server {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "server")

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL.Duration)
	accounts := auth.NewService(opts.Store.Users, tokens, logger)
	registry := session.NewRegistry(cfg.Auth.IdleTimeout.Duration, cfg.Auth.WarnBefore.Duration, logger)

	router := NewBasicRouter()
	router.Use(Logging(logger, opts.Metrics), Recover(logger))

	router.HandleFunc(http.MethodGet, "/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle(http.MethodGet, "/metrics", opts.Metrics.Handler())

	router.Handler(proxy.NewImageHandlerFromConfig(cfg.Proxy, logger, opts.Metrics))
	router.Handler(web.NewShellHandler())

	var source tasks.CatalogSource
	if opts.Catalog != nil {
		source = opts.Catalog
		router.Handler(proxy.NewCatalogHandler(opts.Catalog, cfg.Proxy.CatalogMaxAge.Duration, logger, opts.Metrics))
	}
	NewAPI(accounts, opts.Store, registry, source, logger).Register(router)

	s := &Server{
		addr:     cfg.Server.Addr(),
		router:   router,
		registry: registry,
		metrics:  opts.Metrics,
		logger:   logger,
	}
	s.http = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return CORS(s.router)
}

// Run listens on the configured address until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(gaugeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s.metrics.SetActiveSessions(s.registry.Active())
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		s.registry.Close()
		s.logger.Info("shutting down")
		return s.http.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases session monitors without serving.
func (s *Server) Close() {
	s.registry.Close()
}
