package price

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	price decimal.Decimal
	err   error
	calls int
}

func (f *fakeFetcher) SimplePrice(context.Context, string, string) (decimal.Decimal, error) {
	f.calls++
	return f.price, f.err
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(fetcher Fetcher, cache Cache) (*Service, *clock) {
	c := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	svc := NewService(Config{}, fetcher, cache, nil)
	svc.now = c.Now
	return svc, c
}

func TestServiceCachesForTTL(t *testing.T) {
	fetcher := &fakeFetcher{price: decimal.RequireFromString("0.25")}
	svc, c := newTestService(fetcher, nil)

	got := svc.Price(context.Background())
	require.Equal(t, SourceLive, got.Source)
	require.True(t, got.Price.Equal(decimal.RequireFromString("0.25")))

	c.now = c.now.Add(4 * time.Minute)
	got = svc.Price(context.Background())
	require.Equal(t, SourceCache, got.Source)
	require.Equal(t, 1, fetcher.calls)

	c.now = c.now.Add(2 * time.Minute)
	fetcher.price = decimal.RequireFromString("0.3")
	got = svc.Price(context.Background())
	require.Equal(t, SourceLive, got.Source)
	require.Equal(t, "0.3", got.Price.String())
	require.Equal(t, 2, fetcher.calls)
}

func TestServiceServesStaleOnError(t *testing.T) {
	fetcher := &fakeFetcher{price: decimal.RequireFromString("0.5")}
	svc, c := newTestService(fetcher, nil)
	svc.Price(context.Background())

	c.now = c.now.Add(time.Hour)
	fetcher.err = errors.New("coingecko down")
	got := svc.Price(context.Background())
	require.Equal(t, SourceStale, got.Source)
	require.Equal(t, "0.5", got.Price.String())
}

func TestServiceFallback(t *testing.T) {
	svc, _ := newTestService(&fakeFetcher{err: errors.New("no network")}, nil)

	got := svc.Price(context.Background())
	require.Equal(t, SourceFallback, got.Source)
	require.Equal(t, "0.14", got.Price.String())
	require.Equal(t, "usd", got.Currency)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("LEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LEDGER_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	rds := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rds.Close() })
	require.NoError(t, rds.Ping(ctx).Err())

	cache := NewRedisCache(rds, "test-"+uuid.NewString())
	t.Cleanup(func() { rds.Del(ctx, cache.key) })

	_, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	fetchedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, cache.Set(ctx, Quote{Price: decimal.RequireFromString("0.1234"), FetchedAt: fetchedAt}))

	got, ok, err := cache.Get(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0.1234", got.Price.String())
	require.True(t, got.FetchedAt.Equal(fetchedAt))
}
