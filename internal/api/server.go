package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/btgateway/internal/device"
	"github.com/nerrad567/btgateway/internal/gateway"
	"github.com/nerrad567/btgateway/internal/infrastructure/config"
	"github.com/nerrad567/btgateway/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Gateway is the part of the gateway manager the API uses.
// Implemented by *gateway.Manager.
type Gateway interface {
	Status() []gateway.WorkerStatus
	Devices() []gateway.ConfiguredDevice
	UpdateAll()
}

// HealthSource provides the current health message.
// Implemented by *gateway.HealthReporter.
type HealthSource interface {
	Current() gateway.HealthMessage
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Gateway Gateway
	Health  HealthSource

	// Store serves device status and history. Optional; without it the
	// device list carries no status and history returns 503.
	Store device.Repository

	// Metrics serves /metrics. Optional.
	Metrics http.Handler

	Version string
}

// Server is the HTTP status API.
//
// It manages the HTTP listener, routes and middleware.
// The server is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	gateway Gateway
	health  HealthSource
	store   device.Repository
	metrics http.Handler
	version string
	server  *http.Server
	addr    net.Addr
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, gateway, health)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if deps.Health == nil {
		return nil, fmt.Errorf("health source is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		gateway: deps.Gateway,
		health:  deps.Health,
		store:   deps.Store,
		metrics: deps.Metrics,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener is bound before Start returns so a port conflict is reported
// to the caller; requests are served in a background goroutine. The server
// can be stopped with Close().
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.addr = ln.Addr()

	s.logger.Info("API server listening", "address", s.addr.String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
