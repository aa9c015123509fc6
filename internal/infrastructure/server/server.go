package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/termhost/backend/internal/api/http"
	"github.com/GriffinCanCode/termhost/backend/internal/api/middleware"
	"github.com/GriffinCanCode/termhost/backend/internal/api/ws"
	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/termhost/backend/internal/providers/terminal"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	manager *terminal.Manager
	hub     *ws.Hub
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics

	mu         sync.Mutex
	httpServer *http.Server
	closeOnce  sync.Once
	closeErr   error
}

// Option customizes server construction
type Option func(*options)

type options struct {
	logger   *logging.Logger
	terminal []terminal.Option
}

// WithLogger replaces the logger built from the config
func WithLogger(logger *logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTerminalOptions passes extra options to the session manager
func WithTerminalOptions(opts ...terminal.Option) Option {
	return func(o *options) { o.terminal = append(o.terminal, opts...) }
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing termhost server",
		zap.String("host", cfg.Server.Host),
		zap.String("port", cfg.Server.Port),
		zap.String("shell", cfg.Terminal.ResolveShell()),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("termhost", logger.Component("tracing"))
	hub := ws.NewHub(logger.Component("ws"), metrics, ws.DefaultQueueSize)

	termOpts := append([]terminal.Option{
		terminal.WithConfig(cfg.Terminal),
		terminal.WithSink(hub),
		terminal.WithLogger(logger.Component("terminal")),
		terminal.WithMetrics(metrics),
	}, o.terminal...)
	manager := terminal.NewManager(termOpts...)

	if cfg.Terminal.ProfileFile != "" {
		profile, err := config.LoadProfile(cfg.Terminal.ProfileFile)
		if err != nil {
			tracer.Close()
			return nil, err
		}
		manager.SetProfile(profile)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger.Component("http")))
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	var spawnGuards []gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
			zap.Int("spawn_rps", cfg.RateLimit.SpawnPerSecond),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitFromConfig(cfg.RateLimit)))
		spawnGuards = append(spawnGuards, middleware.GlobalRateLimit(middleware.SpawnRateLimitFromConfig(cfg.RateLimit)))
	}

	provider := terminal.NewProvider(manager)
	handlers := apihttp.NewHandlers(provider, metrics)
	wsHandler := ws.NewHandler(hub, provider, tracer)

	handlers.Register(router, spawnGuards...)
	router.GET("/stream", append(spawnGuards, wsHandler.HandleConnection)...)
	router.GET("/metrics", monitoring.Handler(metrics))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		manager: manager,
		hub:     hub,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Router returns the HTTP handler
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Manager returns the terminal session manager
func (s *Server) Manager() *terminal.Manager {
	return s.manager
}

// Start starts background work that does not need a listener: the event
// dispatcher and the profile watcher
func (s *Server) Start(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return err
	}

	if path := s.config.Terminal.ProfileFile; path != "" {
		err := config.WatchProfile(ctx, path, s.logger.Component("config"), s.manager.SetProfile)
		if err != nil {
			s.logger.Warn("Profile hot reload disabled", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

// Serve accepts connections on ln until ctx is done or the listener fails,
// then shuts everything down
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		return err
	}
	return serveErr
}

// Run listens on the configured address and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Shutdown stops accepting requests, kills every session, disconnects
// stream clients and flushes logs. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.logger.Info("Shutting down server...")

		var result *multierror.Error

		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
			}
		}

		if err := s.manager.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("terminal shutdown: %w", err))
		}

		s.hub.Close()
		s.tracer.Close()

		if err := result.ErrorOrNil(); err != nil {
			s.logger.Error("Shutdown completed with errors", zap.Error(err))
			s.closeErr = err
		} else {
			s.logger.Info("Shutdown complete")
		}
		_ = s.logger.Sync()
	})
	return s.closeErr
}
