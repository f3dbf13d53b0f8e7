package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/doorsync/doorsync-core/internal/door"
	"github.com/doorsync/doorsync-core/internal/history"
	"github.com/doorsync/doorsync-core/internal/infrastructure/config"
	"github.com/doorsync/doorsync-core/internal/infrastructure/logging"
	"github.com/doorsync/doorsync-core/internal/stream"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// StreamStatus reports the upstream connection state, so /status can say
// whether the snapshot is live or possibly stale.
type StreamStatus interface {
	State() stream.ConnectionState
}

// Deps holds the dependencies required by the status server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Store   *door.Store
	Stream  StreamStatus
	History *history.Repository // optional; history routes 404 without it
	Version string
}

// Server is the local read-only HTTP status server.
//
// It is created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	store   *door.Store
	stream  StreamStatus
	history *history.Repository
	version string
	server  *http.Server
}

// New creates a status server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, store, stream status)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("door store is required")
	}
	if deps.Stream == nil {
		return nil, fmt.Errorf("stream status is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		store:   deps.Store,
		stream:  deps.Stream,
		history: deps.History,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; the server is stopped with
// Close().
//
// Parameters:
//   - ctx: Context for startup (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(_ context.Context) error {
	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	s.logger.Info("status server listening", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the status server.
//
// It waits up to 10 seconds for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}

// HealthCheck verifies the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("status server not started")
	}
	return nil
}
