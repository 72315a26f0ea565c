// Package marketdata fetches and caches multi-timeframe bar series, with
// bounded retries, a session-refresh path for authorization failures and
// a streaming-derived fallback for the shortest timeframe.
package marketdata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/exception"
	"main/internal/model"
	"main/internal/obs"
)

const (
	maxAttempts    = 3
	initialBackoff = time.Second
)

// ttls maps the cached timeframes to their expiry. The shortest timeframe
// and daily bars are always fetched fresh.
var ttls = map[model.Timeframe]time.Duration{
	model.TimeframeQuarter: 15 * time.Minute,
	model.TimeframeHour:    time.Hour,
}

// Fetcher is the REST slice of the broker client the cache consumes.
type Fetcher interface {
	Prices(ctx context.Context, epic string, tf model.Timeframe, max int) ([]model.Candle, error)
	PriorDaily(ctx context.Context, epic string) (high, low float64, ok bool, err error)
}

// SessionRefresher forces a new credential exchange after a request-level
// authorization failure.
type SessionRefresher interface {
	Refresh(ctx context.Context) error
}

// Fallback supplies streaming-aggregated bars when the REST fetch for the
// shortest timeframe comes back empty. Best-effort; may itself be empty.
type Fallback interface {
	Bars(epic string) []model.Candle
}

type cacheKey struct {
	epic string
	tf   model.Timeframe
}

type cacheEntry struct {
	series    []model.Candle
	fetchedAt time.Time
}

// Cache is the timeframe-aware market-data cache.
type Cache struct {
	fetcher  Fetcher
	sessions SessionRefresher
	fallback Fallback
	metrics  *obs.Metrics

	now   func() time.Time
	sleep func(time.Duration)

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

// NewCache creates a cache. fallback may be nil when no streaming source
// is configured; metrics may be nil.
func NewCache(fetcher Fetcher, sessions SessionRefresher, fallback Fallback, metrics *obs.Metrics) *Cache {
	return &Cache{
		fetcher:  fetcher,
		sessions: sessions,
		fallback: fallback,
		metrics:  metrics,
		now:      time.Now,
		sleep:    time.Sleep,
		entries:  make(map[cacheKey]cacheEntry),
	}
}

// Bars returns up to max candles for (epic, timeframe), oldest first.
//
// Cached timeframes are served from the cache while younger than their
// TTL. A miss runs the fetch protocol: up to three attempts, forced
// session refresh on an unauthorized response, immediate abort on a
// bad-request response, exponential backoff otherwise. Exhausted retries
// return an empty series and a nil error; the caller treats empty as "no
// data, skip this cycle". The returned Status keeps the exhausted and
// genuinely-empty cases distinguishable.
func (c *Cache) Bars(ctx context.Context, epic string, tf model.Timeframe, max int) ([]model.Candle, obs.FetchOutcome, error) {
	ttl, cacheable := ttls[tf]
	key := cacheKey{epic: epic, tf: tf}

	if cacheable {
		c.mu.Lock()
		entry, ok := c.entries[key]
		c.mu.Unlock()
		if ok && c.now().Sub(entry.fetchedAt) < ttl {
			return entry.series, obs.FetchOK, nil
		}
	}

	series, outcome, err := c.fetch(ctx, epic, tf, max)
	if err != nil {
		return nil, outcome, err
	}

	if cacheable && outcome == obs.FetchOK {
		c.mu.Lock()
		c.entries[key] = cacheEntry{series: series, fetchedAt: c.now()}
		c.mu.Unlock()
	}
	return series, outcome, nil
}

func (c *Cache) fetch(ctx context.Context, epic string, tf model.Timeframe, max int) ([]model.Candle, obs.FetchOutcome, error) {
	wait := initialBackoff
	for attempt := 0; attempt < maxAttempts; attempt++ {
		series, err := c.fetcher.Prices(ctx, epic, tf, max)
		switch {
		case err == nil:
			outcome := obs.FetchOK
			if len(series) == 0 {
				outcome = obs.FetchEmpty
				if tf == model.TimeframeFiveMinute && c.fallback != nil {
					if fb := c.fallback.Bars(epic); len(fb) > 0 {
						series, outcome = fb, obs.FetchFallback
					}
				}
			}
			c.metrics.ObserveFetch(outcome)
			return series, outcome, nil

		case errors.Is(err, exception.ErrUnauthorized):
			// Not a hard failure for the caller, but it spends an attempt.
			if refreshErr := c.sessions.Refresh(ctx); refreshErr != nil {
				return nil, obs.FetchExhausted, refreshErr
			}
			continue

		case errors.Is(err, exception.ErrBadDataRequest):
			c.metrics.ObserveFetch(obs.FetchEmpty)
			return nil, obs.FetchEmpty, err

		default:
			logs.Errorf("fetch %s %s attempt %d, err: %+v", epic, tf, attempt+1, err)
			if attempt < maxAttempts-1 {
				c.sleep(wait)
				wait *= 2
			}
		}
	}

	logs.Errorf("fetch %s %s failed after %d attempts", epic, tf, maxAttempts)
	c.metrics.ObserveFetch(obs.FetchExhausted)
	return nil, obs.FetchExhausted, nil
}

// PriorSessionExtremes returns the prior session's high and low from the
// last two daily bars. ok is false when fewer than two exist or the fetch
// failed.
func (c *Cache) PriorSessionExtremes(ctx context.Context, epic string) (high, low float64, ok bool) {
	high, low, ok, err := c.fetcher.PriorDaily(ctx, epic)
	if err != nil {
		logs.Errorf("prior daily %s, err: %+v", epic, err)
		return 0, 0, false
	}
	return high, low, ok
}
