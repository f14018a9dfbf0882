package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"rewardLedger/internal/indexer"
	"rewardLedger/internal/model"
	"rewardLedger/internal/price"
	"rewardLedger/internal/reward"
	"rewardLedger/internal/storage"
)

// RewardRefresher is satisfied by *scheduler.Scheduler[reward.Result].
type RewardRefresher interface {
	Refresh(ctx context.Context) (reward.Result, error)
}

// EventRefresher is satisfied by *scheduler.Scheduler[indexer.SyncResult].
type EventRefresher interface {
	Refresh(ctx context.Context) (indexer.SyncResult, error)
}

type PriceSource interface {
	Price(ctx context.Context) price.Result
}

// ReadStore is the read side of the ledger exposed over HTTP.
type ReadStore interface {
	storage.EventStore
	ListRewards(ctx context.Context, operator string) ([]model.ValidatorReward, error)
	ListRewardActions(ctx context.Context) ([]model.RewardAction, error)
}

type Deps struct {
	Rewards  RewardRefresher
	Events   EventRefresher
	Store    ReadStore
	Price    PriceSource
	Metrics  http.Handler
	Operator string
	// TokenDecimals scales amounts for the human-readable balance fields.
	TokenDecimals int32
}

type Config struct {
	Listen      string
	CORSOrigins []string
}

// Server exposes the ledger and the manual refresh triggers over HTTP.
type Server struct {
	cfg    Config
	deps   Deps
	logger *zap.Logger
	srv    *http.Server
}

func NewServer(cfg Config, deps Deps, logger *zap.Logger) (*Server, error) {
	if deps.Rewards == nil || deps.Events == nil {
		return nil, fmt.Errorf("refreshers are required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{cfg: cfg, deps: deps, logger: logger}
	s.srv = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the full middleware-wrapped router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rewards/refresh", s.refreshRewards)
	mux.HandleFunc("GET /rewards", s.listRewards)
	mux.HandleFunc("GET /reward-actions/summary", s.rewardActionsSummary)
	mux.HandleFunc("GET /reward-actions", s.listRewardActions)
	mux.HandleFunc("POST /events/refresh", s.refreshEvents)
	mux.HandleFunc("GET /events", s.listEvents)
	mux.HandleFunc("GET /events/latest", s.latestEvent)
	mux.HandleFunc("GET /price", s.getPrice)
	mux.HandleFunc("GET /healthz", s.healthz)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics)
	}

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})

	return requestID(accessLog(s.logger, recoverer(s.logger, c.Handler(mux))))
}

// ListenAndServe blocks until ctx is cancelled, then shuts the server down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
