package exchange

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a cached rate is served.
const DefaultTTL = 12 * time.Hour

const maxCleanupInterval = 5 * time.Minute

type cachedRate struct {
	rate      Rate
	expiresAt time.Time
}

// CachedSource serves rates from memory for ttl and collapses concurrent
// lookups of the same pair into one upstream call.
type CachedSource struct {
	inner RateSource
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu          sync.RWMutex
	rates       map[string]cachedRate
	lastCleanup time.Time
}

// NewCachedSource wraps inner with an in-memory cache.
func NewCachedSource(inner RateSource, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedSource{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		rates: make(map[string]cachedRate),
	}
}

// Rate returns the cached rate for the pair, fetching it when missing or stale.
func (s *CachedSource) Rate(ctx context.Context, fromCurrency, toCurrency string) (Rate, error) {
	from, to, err := pair(fromCurrency, toCurrency)
	if err != nil {
		return Rate{}, err
	}
	if from == to {
		return Identity, nil
	}
	key := from + "->" + to

	s.mu.RLock()
	entry, ok := s.rates[key]
	s.mu.RUnlock()
	if ok && s.now().Before(entry.expiresAt) {
		return entry.rate, nil
	}

	// The fetch is detached from this caller so one short deadline cannot
	// fail every waiter on the same pair.
	ch := s.group.DoChan(key, func() (any, error) {
		rate, err := s.inner.Rate(context.WithoutCancel(ctx), from, to)
		if err != nil {
			return Rate{}, err
		}
		s.store(key, rate)
		return rate, nil
	})

	select {
	case <-ctx.Done():
		return Rate{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Rate{}, res.Err
		}
		return res.Val.(Rate), nil
	}
}

func (s *CachedSource) store(key string, rate Rate) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rates[key] = cachedRate{rate: rate, expiresAt: now.Add(s.ttl)}

	interval := min(s.ttl, maxCleanupInterval)
	if !s.lastCleanup.IsZero() && now.Sub(s.lastCleanup) < interval {
		return
	}
	for k, e := range s.rates {
		if !now.Before(e.expiresAt) {
			delete(s.rates, k)
		}
	}
	s.lastCleanup = now
}
