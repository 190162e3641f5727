package exchange

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *FrankfurterSource {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	src := NewFrankfurterSource(server.URL, time.Second)
	src.backoff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return src
}

func TestRate_Apply(t *testing.T) {
	t.Parallel()

	r := Rate{Value: decimal.RequireFromString("1.0837")}
	require.Equal(t, "108.37", r.Apply(decimal.NewFromInt(100)).String())
	require.Equal(t, "12.5", Identity.Apply(decimal.RequireFromString("12.50")).String())
}

func TestFrankfurterSource_Rate(t *testing.T) {
	t.Parallel()

	t.Run("fetches the latest rate", func(t *testing.T) {
		t.Parallel()

		src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/latest", r.URL.Path)
			assert.Equal(t, "USD", r.URL.Query().Get("from"))
			assert.Equal(t, "EUR", r.URL.Query().Get("to"))
			_, _ = w.Write([]byte(`{"amount":1,"base":"USD","date":"2024-06-11","rates":{"EUR":0.9312}}`))
		})

		rate, err := src.Rate(context.Background(), "usd", " eur ")
		require.NoError(t, err)
		require.True(t, decimal.RequireFromString("0.9312").Equal(rate.Value))
		require.Equal(t, "2024-06-11", rate.Date.Format("2006-01-02"))
	})

	t.Run("same currency needs no call", func(t *testing.T) {
		t.Parallel()

		src := newTestSource(t, func(http.ResponseWriter, *http.Request) {
			t.Error("unexpected request")
		})

		rate, err := src.Rate(context.Background(), "EUR", "eur")
		require.NoError(t, err)
		require.Equal(t, Identity, rate)
	})

	t.Run("retries server errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		src := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"base":"GBP","date":"2024-06-11","rates":{"EUR":1.18}}`))
		})

		rate, err := src.Rate(context.Background(), "GBP", "EUR")
		require.NoError(t, err)
		require.Equal(t, "1.18", rate.Value.String())
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("does not retry client errors", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		src := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		})

		_, err := src.Rate(context.Background(), "XYZ", "EUR")
		require.ErrorIs(t, err, ErrRateUnavailable)
		require.Contains(t, err.Error(), "status 404")
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		t.Parallel()

		var calls atomic.Int32
		src := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := src.Rate(context.Background(), "USD", "EUR")
		require.ErrorIs(t, err, ErrRateUnavailable)
		require.Equal(t, int32(frankfurterRetries+1), calls.Load())
	})

	tests := []struct {
		name string
		body string
	}{
		{name: "missing target", body: `{"date":"2024-06-11","rates":{"GBP":0.85}}`},
		{name: "zero rate", body: `{"date":"2024-06-11","rates":{"EUR":0}}`},
		{name: "bad date", body: `{"date":"11/06/2024","rates":{"EUR":0.93}}`},
		{name: "not json", body: `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := newTestSource(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := src.Rate(context.Background(), "USD", "EUR")
			require.Error(t, err)
		})
	}

	t.Run("rejects malformed codes", func(t *testing.T) {
		t.Parallel()

		src := NewFrankfurterSource("", 0)
		_, err := src.Rate(context.Background(), "", "EUR")
		require.ErrorIs(t, err, ErrInvalidCurrency)
		_, err = src.Rate(context.Background(), "EURO", "USD")
		require.ErrorIs(t, err, ErrInvalidCurrency)
	})
}

type countingSource struct {
	mu    sync.Mutex
	calls int
	rate  Rate
	err   error
	delay time.Duration
}

func (s *countingSource) Rate(context.Context, string, string) (Rate, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.rate, s.err
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCachedSource_Rate(t *testing.T) {
	t.Parallel()

	usd := Rate{Value: decimal.RequireFromString("0.93"), Date: time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)}

	t.Run("serves repeated lookups from cache", func(t *testing.T) {
		t.Parallel()

		upstream := &countingSource{rate: usd}
		src := NewCachedSource(upstream, time.Hour)

		for range 3 {
			rate, err := src.Rate(context.Background(), "usd", "EUR")
			require.NoError(t, err)
			require.Equal(t, usd, rate)
		}
		require.Equal(t, 1, upstream.count())
	})

	t.Run("refetches after ttl", func(t *testing.T) {
		t.Parallel()

		upstream := &countingSource{rate: usd}
		src := NewCachedSource(upstream, time.Minute)
		clock := time.Date(2024, 6, 12, 8, 0, 0, 0, time.UTC)
		src.now = func() time.Time { return clock }

		_, err := src.Rate(context.Background(), "USD", "EUR")
		require.NoError(t, err)

		clock = clock.Add(2 * time.Minute)
		_, err = src.Rate(context.Background(), "USD", "EUR")
		require.NoError(t, err)
		require.Equal(t, 2, upstream.count())
	})

	t.Run("does not cache failures", func(t *testing.T) {
		t.Parallel()

		upstream := &countingSource{err: errors.New("down")}
		src := NewCachedSource(upstream, time.Hour)

		_, err := src.Rate(context.Background(), "USD", "EUR")
		require.Error(t, err)
		_, err = src.Rate(context.Background(), "USD", "EUR")
		require.Error(t, err)
		require.Equal(t, 2, upstream.count())
	})

	t.Run("collapses concurrent lookups", func(t *testing.T) {
		t.Parallel()

		upstream := &countingSource{rate: usd, delay: 50 * time.Millisecond}
		src := NewCachedSource(upstream, time.Hour)

		var wg sync.WaitGroup
		for range 8 {
			wg.Go(func() {
				_, err := src.Rate(context.Background(), "USD", "EUR")
				assert.NoError(t, err)
			})
		}
		wg.Wait()
		require.Equal(t, 1, upstream.count())
	})

	t.Run("caller deadline does not poison the cache", func(t *testing.T) {
		t.Parallel()

		upstream := &countingSource{rate: usd, delay: 50 * time.Millisecond}
		src := NewCachedSource(upstream, time.Hour)

		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		_, err := src.Rate(ctx, "USD", "EUR")
		require.ErrorIs(t, err, context.DeadlineExceeded)

		require.Eventually(t, func() bool {
			rate, err := src.Rate(context.Background(), "USD", "EUR")
			return err == nil && rate == usd
		}, time.Second, 10*time.Millisecond)
		require.Equal(t, 1, upstream.count())
	})

	t.Run("identity skips upstream", func(t *testing.T) {
		t.Parallel()

		upstream := &countingSource{rate: usd}
		src := NewCachedSource(upstream, 0)

		rate, err := src.Rate(context.Background(), "EUR", "EUR")
		require.NoError(t, err)
		require.Equal(t, Identity, rate)
		require.Zero(t, upstream.count())
	})
}
