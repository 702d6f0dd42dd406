package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/probekit/internal/archive"
	"github.com/nerrad567/probekit/internal/infrastructure/config"
	"github.com/nerrad567/probekit/internal/infrastructure/logging"
	"github.com/nerrad567/probekit/internal/mqtttester"
	"github.com/nerrad567/probekit/internal/wstester"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	Relay     config.RelayConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	WebSocket *wstester.Tester
	MQTT      *mqtttester.Tester
	Archive   archive.Repository // optional
	Recorder  *archive.Recorder  // optional, reported in /metrics
	Telemetry TelemetryCounters  // optional, reported in /metrics
	Version   string
}

// TelemetryCounters is the view of the stats sink that /metrics reports.
type TelemetryCounters interface {
	PointsQueued() int64
	WriteErrors() int64
}

// Server is the HTTP control API.
//
// It is created with New() and started with Start(). Thread Safety: all
// methods are safe for concurrent use.
type Server struct {
	cfg       config.APIConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	ws        *wstester.Tester
	mqtt      *mqtttester.Tester
	archive   archive.Repository
	recorder  *archive.Recorder
	telemetry TelemetryCounters
	version   string
	startTime time.Time

	hub     *Hub
	limiter *clientLimiter // nil when rate limiting is off
	server  *http.Server
	cancel  context.CancelFunc // cancels the hub on Close()

	detachOnce sync.Once
	detach     func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. Engine events are
// relayed to the hub from this point on.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.WebSocket == nil {
		return nil, fmt.Errorf("websocket tester is required")
	}
	if deps.MQTT == nil {
		return nil, fmt.Errorf("mqtt tester is required")
	}

	s := &Server{
		cfg:       deps.Config,
		secCfg:    deps.Security,
		logger:    deps.Logger,
		ws:        deps.WebSocket,
		mqtt:      deps.MQTT,
		archive:   deps.Archive,
		recorder:  deps.Recorder,
		telemetry: deps.Telemetry,
		version:   deps.Version,
		startTime: time.Now(),
	}
	if deps.Config.RateLimit.Enabled {
		s.limiter = newClientLimiter(deps.Config.RateLimit)
	}
	s.hub = NewHub(deps.Relay, deps.Config.CORS, deps.Logger)
	s.detach = s.hub.RelayTesters(s.ws, s.mqtt)

	if s.secCfg.JWT.Secret == "" {
		s.logger.Warn("jwt secret not set, control API is unauthenticated")
	}
	return s, nil
}

// Handler returns the router. Useful for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start runs the hub and begins listening in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var hubCtx context.Context
	hubCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(hubCtx)

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

// Close stops relaying events, disconnects relay clients and gracefully
// shuts down the listener. It waits up to 10 seconds for in-flight requests.
func (s *Server) Close() error {
	s.detachOnce.Do(s.detach)

	if s.cancel != nil {
		s.cancel()
	}
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

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
