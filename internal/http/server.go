// Package http serves the read-only JSON query API of the engine.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fincast/internal/core"
	"fincast/internal/log"
	"fincast/internal/middleware/ratelimit"
	"fincast/internal/middleware/security"
	"fincast/internal/middleware/trace"
)

// Analyzer is the slice of the analysis service the API exposes.
type Analyzer interface {
	Forecast(ctx context.Context, userID string, asOf time.Time) (core.ForecastResult, error)
	Simulate(ctx context.Context, userID string, asOf time.Time) (core.ShockSimulationResult, error)
	Budgets(ctx context.Context, userID string, asOf time.Time) ([]core.BudgetProjection, []core.SavingsOpportunity, error)
	Allocate(ctx context.Context, userID string, asOf time.Time, strategy string) (core.AllocationPlan, error)
	Report(ctx context.Context, userID string, asOf time.Time, strategy string) (core.Report, error)
	Invalidate(ctx context.Context, userID string) int
}

// Config tunes the API server.
type Config struct {
	Addr string

	// RequestsPerMinute is the per-client limit on /v1 routes (default: 120)
	RequestsPerMinute int

	// RequestTimeout bounds one computation (default: 30s)
	RequestTimeout time.Duration

	// TrustedProxies may set X-Forwarded-For (default: loopback and private networks)
	TrustedProxies []string

	// Strategies is the list served by /v1/strategies
	Strategies []string
}

type Server struct {
	http.Server
	analyzer       Analyzer
	logger         *log.Logger
	limiter        *ratelimit.Limiter
	detector       *security.Detector
	requestTimeout time.Duration
	strategies     []string
	now            func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, analyzer Analyzer, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		analyzer:       analyzer,
		logger:         logger.WithComponent(log.ComponentHTTP),
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute}),
		detector:       detector,
		requestTimeout: cfg.RequestTimeout,
		strategies:     append([]string(nil), cfg.Strategies...),
		now:            time.Now,
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /v1/strategies", s.handleStrategies)
	api.HandleFunc("GET /v1/users/{id}/forecast", s.handleForecast)
	api.HandleFunc("GET /v1/users/{id}/simulation", s.handleSimulation)
	api.HandleFunc("GET /v1/users/{id}/budgets", s.handleBudgets)
	api.HandleFunc("GET /v1/users/{id}/allocation", s.handleAllocation)
	api.HandleFunc("GET /v1/users/{id}/report", s.handleReport)
	api.HandleFunc("POST /v1/users/{id}/invalidate", s.handleInvalidate)

	limited := s.limiter.Middleware(detector.ClientIP, s.handleRateLimited)(api)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.Handle("/v1/", limited)

	var handler http.Handler = mux
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(s.logger, detector.ClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
