package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/duuxlink/internal/device"
	"github.com/nerrad567/duuxlink/internal/infrastructure/config"
	"github.com/nerrad567/duuxlink/internal/infrastructure/logging"
	"github.com/nerrad567/duuxlink/internal/integration"
	"github.com/nerrad567/duuxlink/internal/probe"
	"github.com/nerrad567/duuxlink/internal/profile"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is implemented by the database and the InfluxDB client.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Broker   config.BrokerConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Manager  *integration.Manager
	Profiles *profile.Registry
	Prober   *probe.Prober // optional: ?probe=true is rejected without it
	DB       HealthChecker // optional
	Influx   HealthChecker // optional: only set when InfluxDB is enabled
	Hub      *Hub          // optional: created and hooked into Manager when nil
	Version  string
}

// Server is the HTTP API server.
//
// It is created with New and started with Start.
type Server struct {
	cfg       config.APIConfig
	broker    config.BrokerConfig
	logger    *logging.Logger
	registry  *device.Registry
	manager   *integration.Manager
	profiles  *profile.Registry
	prober    *probe.Prober
	db        HealthChecker
	influx    HealthChecker
	hub       *Hub
	version   string
	startTime time.Time
	server    *http.Server
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("integration manager is required")
	}
	if deps.Profiles == nil {
		return nil, fmt.Errorf("profile registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		broker:    deps.Broker,
		logger:    deps.Logger,
		registry:  deps.Registry,
		manager:   deps.Manager,
		profiles:  deps.Profiles,
		prober:    deps.Prober,
		db:        deps.DB,
		influx:    deps.Influx,
		hub:       deps.Hub,
		version:   deps.Version,
		startTime: time.Now(),
	}

	if s.hub == nil {
		s.hub = NewHub(deps.Logger)
		deps.Manager.AddHook(s.hub)
	}

	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The hub runs until ctx is cancelled or Close is called.
//
// Returns:
//   - error: If the listener cannot be created (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
