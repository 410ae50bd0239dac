package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecomstudio/internal/core"
	"ecomstudio/internal/log"
	"ecomstudio/internal/middleware/ratelimit"
	"ecomstudio/internal/middleware/security"
	"ecomstudio/internal/middleware/trace"
	"ecomstudio/internal/services"
)

// StatsComputer is satisfied by *stats.Engine.
type StatsComputer interface {
	ComputeAll(ctx context.Context, now time.Time) (core.StatsReport, error)
}

// Ledger is satisfied by *services.LedgerService.
type Ledger interface {
	Record(ctx context.Context, req services.RecordRequest) (core.LedgerEvent, error)
	List(ctx context.Context, from, to time.Time) ([]core.LedgerEvent, error)
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Engine StatsComputer
	Ledger Ledger
	// Ready reports backend health for /readyz. Nil means always ready.
	Ready      func(ctx context.Context) error
	AdminToken string
	Logger     *log.Logger
	RateLimit  ratelimit.Config
}

type Server struct {
	http.Server
	engine      StatsComputer
	ledger      Ledger
	ready       func(ctx context.Context) error
	rateLimiter *ratelimit.Limiter
	startedAt   time.Time
	now         func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}

	s := &Server{
		engine:      deps.Engine,
		ledger:      deps.Ledger,
		ready:       deps.Ready,
		rateLimiter: ratelimit.NewLimiter(deps.RateLimit),
		startedAt:   time.Now(),
		now:         time.Now,
	}

	ips := security.NewIPResolver()
	requireToken := security.RequireToken(deps.AdminToken)
	limitWrites := s.rateLimiter.Middleware(ips.ClientIP, writeRateLimited)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /admin/stats", requireToken(http.HandlerFunc(s.handleStats)))
	mux.Handle("GET /ledger", requireToken(http.HandlerFunc(s.handleListLedger)))
	mux.Handle("POST /ledger", requireToken(limitWrites(http.HandlerFunc(s.handleRecordLedger))))

	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = log.Middleware(logger.WithComponent(log.ComponentHTTP))(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(ips.ClientIP, logger).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
