package price

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultTTL    = 5 * time.Minute
	DefaultCoinID = "mitosis"
)

// DefaultFallback is served when no quote was ever fetched.
var DefaultFallback = decimal.RequireFromString("0.14")

type Source string

const (
	SourceLive     Source = "live"
	SourceCache    Source = "cache"
	SourceStale    Source = "stale"
	SourceFallback Source = "fallback"
)

// Fetcher is implemented by *CoingeckoClient.
type Fetcher interface {
	SimplePrice(ctx context.Context, coinID, vs string) (decimal.Decimal, error)
}

type Result struct {
	Price     decimal.Decimal
	Currency  string
	Source    Source
	FetchedAt time.Time
}

type Config struct {
	CoinID   string
	TTL      time.Duration
	Fallback decimal.Decimal
}

// Service returns the token price in USD, refreshing a cached quote at most
// once per TTL.
type Service struct {
	cfg     Config
	fetcher Fetcher
	cache   Cache
	logger  *zap.Logger
	now     func() time.Time
}

func NewService(cfg Config, fetcher Fetcher, cache Cache, logger *zap.Logger) *Service {
	if cfg.CoinID == "" {
		cfg.CoinID = DefaultCoinID
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if !cfg.Fallback.IsPositive() {
		cfg.Fallback = DefaultFallback
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, fetcher: fetcher, cache: cache, logger: logger, now: time.Now}
}

// Price never fails: fetch errors degrade to the stale quote, then to the
// configured fallback.
func (s *Service) Price(ctx context.Context) Result {
	now := s.now()

	cached, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn("price cache read failed", zap.Error(err))
		ok = false
	}
	if ok && now.Sub(cached.FetchedAt) < s.cfg.TTL {
		return s.result(cached, SourceCache)
	}

	value, err := s.fetcher.SimplePrice(ctx, s.cfg.CoinID, "usd")
	if err == nil {
		quote := Quote{Price: value, FetchedAt: now}
		if err := s.cache.Set(ctx, quote); err != nil {
			s.logger.Warn("price cache write failed", zap.Error(err))
		}
		s.logger.Info("price fetched", zap.String("coin", s.cfg.CoinID), zap.String("usd", value.String()))
		return s.result(quote, SourceLive)
	}

	s.logger.Error("price fetch failed", zap.String("coin", s.cfg.CoinID), zap.Error(err))
	if ok {
		s.logger.Warn("serving stale price", zap.String("usd", cached.Price.String()), zap.Time("fetched_at", cached.FetchedAt))
		return s.result(cached, SourceStale)
	}
	s.logger.Warn("serving fallback price", zap.String("usd", s.cfg.Fallback.String()))
	return Result{Price: s.cfg.Fallback, Currency: "usd", Source: SourceFallback}
}

func (s *Service) result(q Quote, source Source) Result {
	return Result{Price: q.Price, Currency: "usd", Source: source, FetchedAt: q.FetchedAt}
}
