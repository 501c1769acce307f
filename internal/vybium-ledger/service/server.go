// Package service exposes the authorize and execute operations over HTTP.
//
// The authorize service serves
//
//	GET  /keygen/{seed}   raw private key seed
//	POST /authorize       binary AuthorizeRequest -> binary AuthorizeResponse
//
// and the execute service serves
//
//	POST /execute         binary ExecuteRequest -> binary Transaction
//
// Both also serve /healthz and, when metrics are enabled, /metrics.
// Failures are opaque to the caller: only the status code says what went
// wrong, the details go to the log.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/authorize"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/executor"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/metrics"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

const readHeaderTimeout = 5 * time.Second

// Server is one HTTP service with its routes, limiter and logger.
type Server struct {
	name    string
	router  chi.Router
	http    *http.Server
	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter *clientLimiter
	now     func() time.Time
	rng     io.Reader

	shutdownTimeout time.Duration
	maxBody         int64

	authorizer *authorize.Authorizer
	pool       *executor.Pool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics counts requests on m and serves it on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithRand sets the randomness used for authorizations.
func WithRand(rng io.Reader) Option {
	return func(s *Server) {
		if rng != nil {
			s.rng = rng
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func newServer(name, addr string, cfg *utils.Config, maxBody int64, opts []Option) *Server {
	s := &Server{
		name:            name,
		router:          chi.NewRouter(),
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		limiter:         newClientLimiter(cfg.RateLimit, cfg.RateBurst, 0),
		now:             time.Now,
		rng:             rand.Reader,
		shutdownTimeout: cfg.ShutdownTimeout,
		maxBody:         maxBody,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("service", name)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.router.Use(s.requestContext, s.rateLimit)
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	return s
}

// NewAuthorizeServer builds the keygen and authorize service listening on
// cfg.AuthorizeAddr. Fees are priced from cfg.BaseFees.
func NewAuthorizeServer(cfg *utils.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("service: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var fees authorize.FeeSchedule
	if len(cfg.BaseFees) > 0 {
		fees = authorize.StaticFeeSchedule(cfg.BaseFees)
	}
	s := newServer("authorize", cfg.AuthorizeAddr, cfg, cfg.AuthorizeMaxBody, opts)
	s.authorizer = authorize.NewAuthorizer(fees)
	s.router.Get("/keygen/{seed}", s.handleKeygen)
	s.router.Post("/authorize", s.handleAuthorize)
	return s, nil
}

// NewExecuteServer builds the execute service listening on cfg.ExecuteAddr.
// Proofs run on pool; the server does not close it.
func NewExecuteServer(cfg *utils.Config, pool *executor.Pool, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("service: nil config")
	}
	if pool == nil {
		return nil, errors.New("service: nil executor pool")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := newServer("execute", cfg.ExecuteAddr, cfg, cfg.ExecuteMaxBody, opts)
	s.pool = pool
	s.router.Post("/execute", s.handleExecute)
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.http.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	s.logger.Info("listening", "addr", s.http.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown %s: %w", s.name, err)
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok\n")
}
