package pricefeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFeed_SolPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"solana":{"usd":147.32}}`))
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, 5*time.Second)
	price, err := feed.SolPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromFloat(147.32)), "got %s", price)
}

func TestHTTPFeed_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"solana":{"usd":150}}`))
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, 5*time.Second)
	price, err := feed.SolPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(150)))
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestHTTPFeed_RejectsNonPositivePrice(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"solana":{"usd":0}}`))
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, 5*time.Second)
	_, err := feed.SolPrice(context.Background())
	require.Error(t, err)
	// A zero price is permanent; no point retrying it.
	assert.Equal(t, int32(1), calls.Load())
}

type erroringFeed struct{ err error }

func (f *erroringFeed) SolPrice(context.Context) (decimal.Decimal, error) {
	return decimal.Zero, f.err
}

type countingFeed struct {
	price decimal.Decimal
	calls int
}

func (f *countingFeed) SolPrice(context.Context) (decimal.Decimal, error) {
	f.calls++
	return f.price, nil
}

func TestCachedFeed_ServesWithinTTL(t *testing.T) {
	upstream := &countingFeed{price: decimal.NewFromInt(100)}
	feed := NewCachedFeed(upstream, time.Hour, decimal.NewFromInt(50), nil)

	for i := 0; i < 3; i++ {
		price, err := feed.SolPrice(context.Background())
		require.NoError(t, err)
		assert.True(t, price.Equal(decimal.NewFromInt(100)))
	}
	assert.Equal(t, 1, upstream.calls)
}

func TestCachedFeed_FallbackWhenNeverFetched(t *testing.T) {
	upstream := &erroringFeed{err: errors.New("upstream down")}
	feed := NewCachedFeed(upstream, time.Hour, decimal.NewFromInt(50), nil)

	price, err := feed.SolPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(50)))
}

func TestCachedFeed_ServesStaleOnRefreshFailure(t *testing.T) {
	upstream := &countingFeed{price: decimal.NewFromInt(120)}
	feed := NewCachedFeed(upstream, time.Nanosecond, decimal.NewFromInt(50), nil)

	price, err := feed.SolPrice(context.Background())
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.NewFromInt(120)))

	// Expire the cache, then break the upstream.
	time.Sleep(time.Millisecond)
	feed.upstream = &erroringFeed{err: errors.New("upstream down")}

	price, err = feed.SolPrice(context.Background())
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(120)), "stale price preferred over fallback")
}
