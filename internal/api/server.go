package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-instar/internal/bridges/instar"
	"github.com/nerrad567/gray-logic-instar/internal/device"
	"github.com/nerrad567/gray-logic-instar/internal/event"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-instar/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a dependency that can report its health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EventSource is the bus the WebSocket hub listens on.
type EventSource interface {
	Subscribe(eventType string, handler event.Handler) (unsubscribe func())
}

// TypeLister lists the supported device types.
type TypeLister interface {
	SupportedTypes() []device.Type
}

// BridgeStats reports the Instar subscriber's counters.
type BridgeStats interface {
	Stats() instar.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Version  string

	// Optional collaborators.
	Types   TypeLister
	History device.MotionHistoryRepository
	Events  EventSource
	Bridge  BridgeStats

	// Health maps a component name ("database", "mqtt", "influxdb") to its checker.
	Health map[string]HealthChecker

	// Metrics contributes optional sections to GET /metrics.
	Metrics MetricsSources
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	registry *device.Registry
	types    TypeLister
	history  device.MotionHistoryRepository
	events   EventSource
	bridge   BridgeStats
	health   map[string]HealthChecker
	metrics  MetricsSources
	version  string

	startTime time.Time
	hub       *Hub
	server    *http.Server
	listener  net.Listener
	cancel    context.CancelFunc

	unsubscribe func()
	closeOnce   sync.Once
}

// New creates a new API server. It is not listening until Start is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     withWebSocketDefaults(deps.WS),
		logger:    deps.Logger,
		registry:  deps.Registry,
		types:     deps.Types,
		history:   deps.History,
		events:    deps.Events,
		bridge:    deps.Bridge,
		health:    deps.Health,
		metrics:   deps.Metrics,
		version:   deps.Version,
		startTime: time.Now(),
	}
	s.hub = NewHub(s.wsCfg, s.logger)
	return s, nil
}

// withWebSocketDefaults fills unset WebSocket limits so the pumps never
// run with a zero ping interval or read limit.
func withWebSocketDefaults(cfg config.WebSocketConfig) config.WebSocketConfig {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 8192
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 10
	}
	return cfg
}

// Handler returns the router. It is used by Start and by tests.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener, relays bus events to the hub and serves HTTP
// in a background goroutine. Stop it with Close.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	if s.events != nil {
		s.unsubscribe = s.events.Subscribe(event.All, s.hub.HandleEvent)
	}

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
		s.cancel()
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server listening", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	var err error
	s.closeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		if s.cancel != nil {
			s.cancel()
		}

		ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		s.logger.Info("API server shutting down")
		if shutdownErr := s.server.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("shutting down API server: %w", shutdownErr)
		}
	})
	return err
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
