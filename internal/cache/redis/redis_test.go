package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steffenmax/arbbot/internal/cache/redis"
	"github.com/steffenmax/arbbot/internal/domain"
)

// newClient connects to the Redis named by ARBBOT_TEST_REDIS_ADDR and skips
// the test when it is unset.
func newClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("ARBBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ARBBOT_TEST_REDIS_ADDR not set")
	}
	c, err := redis.New(context.Background(), redis.ClientConfig{Addr: addr, DB: 15})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = c.Underlying().FlushDB(context.Background()).Err()
		_ = c.Close()
	})
	return c
}

func TestBookCache_RoundTrip(t *testing.T) {
	c := newClient(t)
	cache := redis.NewBookCache(c, time.Minute)
	ctx := context.Background()

	observed := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	book := domain.VenueBook{
		Quote: domain.Quote{Venue: domain.VenueKalshi, Ref: "KXNBA-BOS", BestBid: 0.23, BestAsk: 0.24, Volume: 1520, ObservedAt: observed},
		Asks: domain.DepthLadder{Side: domain.SideAsk, Levels: []domain.PriceLevel{
			{Price: 0.24, Size: 80}, {Price: 0.30, Size: 120},
		}},
	}
	require.NoError(t, cache.SetBook(ctx, book))

	got, err := cache.GetBook(ctx, domain.VenueKalshi, "KXNBA-BOS")
	require.NoError(t, err)
	assert.Equal(t, 0.24, got.Quote.BestAsk)
	assert.True(t, observed.Equal(got.Quote.ObservedAt))
	assert.Equal(t, book.Asks.Levels, got.Asks.Levels)

	_, err = cache.GetBook(ctx, domain.VenuePolymarket, "KXNBA-BOS")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLockManager_HeldUntilReleased(t *testing.T) {
	c := newClient(t)
	lm := redis.NewLockManager(c)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "scan-cycle", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "scan-cycle", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()

	unlock, err = lm.Acquire(ctx, "scan-cycle", time.Minute)
	require.NoError(t, err)
	unlock()
}

func TestSignalBus_Stream(t *testing.T) {
	c := newClient(t)
	bus := redis.NewSignalBus(c, 100)
	ctx := context.Background()

	require.NoError(t, bus.StreamAppend(ctx, domain.StreamClosed, []byte(`{"id":"1"}`)))
	require.NoError(t, bus.StreamAppend(ctx, domain.StreamClosed, []byte(`{"id":"2"}`)))

	msgs, err := bus.StreamRead(ctx, domain.StreamClosed, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"id":"2"}`, string(msgs[1].Payload))
}

func TestBookCache_NamespacesAreIsolated(t *testing.T) {
	c := newClient(t)
	other, err := redis.New(context.Background(), redis.ClientConfig{
		Addr: os.Getenv("ARBBOT_TEST_REDIS_ADDR"), DB: 15, Namespace: "staging",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })
	ctx := context.Background()

	book := domain.VenueBook{
		Quote: domain.Quote{Venue: domain.VenueKalshi, Ref: "KXNBA-LAL", BestAsk: 0.41, ObservedAt: time.Now()},
		Asks:  domain.DepthLadder{Side: domain.SideAsk, Levels: []domain.PriceLevel{{Price: 0.41, Size: 10}}},
	}
	require.NoError(t, redis.NewBookCache(c, time.Minute).SetBook(ctx, book))

	_, err = redis.NewBookCache(other, time.Minute).GetBook(ctx, domain.VenueKalshi, "KXNBA-LAL")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
