package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/venue-core/internal/function"
	"github.com/nerrad567/venue-core/internal/infrastructure/config"
	"github.com/nerrad567/venue-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/venue-core/internal/infrastructure/logging"
	"github.com/nerrad567/venue-core/internal/resource"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// HealthChecker is a component whose health /health reports.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// InvocationWriter records function invocations in a time-series store.
// *influxdb.Client is the production implementation.
type InvocationWriter interface {
	WriteInvocation(inv influxdb.Invocation)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	RateLimit config.RateLimitConfig
	Logger    *logging.Logger

	// Authenticator classifies every function caller.
	Authenticator function.Authenticator

	// Functions are mounted under Config.BasePath by name.
	Functions []resource.Function

	// Objects serves public storage objects. Optional.
	Objects http.Handler

	// Health names the components /health checks. Optional.
	Health map[string]HealthChecker

	// Telemetry receives one point per invocation. Optional.
	Telemetry InvocationWriter

	Version string
}

// Server is the HTTP server of the venuecore functions.
//
// It manages the HTTP listener, the function routes, middleware and the
// Prometheus registry. The server is created with New() and started with
// Start().
type Server struct {
	cfg       config.APIConfig
	rateCfg   config.RateLimitConfig
	logger    *logging.Logger
	authn     function.Authenticator
	functions []resource.Function
	objects   http.Handler
	health    map[string]HealthChecker
	telemetry InvocationWriter
	version   string
	metrics   *Metrics
	limiter   *rateLimiter
	startTime time.Time
	server    *http.Server
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, authenticator, functions)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Authenticator == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if len(deps.Functions) == 0 {
		return nil, fmt.Errorf("at least one function is required")
	}

	s := &Server{
		cfg:       deps.Config,
		rateCfg:   deps.RateLimit,
		logger:    deps.Logger,
		authn:     deps.Authenticator,
		functions: deps.Functions,
		objects:   deps.Objects,
		health:    deps.Health,
		telemetry: deps.Telemetry,
		version:   deps.Version,
		metrics:   NewMetrics(),
		startTime: time.Now(),
	}
	if deps.RateLimit.Enabled {
		s.limiter = newRateLimiter(deps.RateLimit.RequestsPerMinute, deps.RateLimit.Burst)
	}
	return s, nil
}

// Handler returns the fully wired HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It builds the router, starts the rate limiter sweep, and launches the
// HTTP listener in a background goroutine. The server can be stopped with
// Close().
//
// Parameters:
//   - ctx: Context for background goroutines (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.limiter != nil {
		go s.limiter.sweepLoop(srvCtx, limiterSweepInterval)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr, "functions", len(s.functions))
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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

// observe records a completed invocation in Prometheus and, when
// configured, the time-series store.
func (s *Server) observe(inv function.Invocation) {
	s.metrics.observeInvocation(inv)
	if s.telemetry == nil {
		return
	}
	s.telemetry.WriteInvocation(influxdb.Invocation{
		Function: inv.Function,
		Method:   inv.Method,
		AuthType: string(inv.AuthType),
		Flavor:   string(inv.Flavor),
		Status:   inv.Status,
		Duration: inv.Duration,
		At:       inv.At,
	})
}
