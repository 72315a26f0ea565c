package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/exception"
	"main/internal/model"
	"main/internal/obs"
)

type stubFetcher struct {
	responses []fetchResponse
	calls     int
}

type fetchResponse struct {
	series []model.Candle
	err    error
}

func (f *stubFetcher) Prices(context.Context, string, model.Timeframe, int) ([]model.Candle, error) {
	resp := f.responses[len(f.responses)-1]
	if f.calls < len(f.responses) {
		resp = f.responses[f.calls]
	}
	f.calls++
	return resp.series, resp.err
}

func (f *stubFetcher) PriorDaily(context.Context, string) (float64, float64, bool, error) {
	return 0, 0, false, nil
}

type stubRefresher struct {
	calls int
	err   error
}

func (r *stubRefresher) Refresh(context.Context) error {
	r.calls++
	return r.err
}

type stubFallback struct {
	series []model.Candle
}

func (f *stubFallback) Bars(string) []model.Candle {
	return f.series
}

func newTestCache(fetcher Fetcher, refresher SessionRefresher, fallback Fallback) (*Cache, *[]time.Duration) {
	c := NewCache(fetcher, refresher, fallback, obs.NewMetrics())
	slept := &[]time.Duration{}
	c.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return c, slept
}

func oneBar(close float64) []model.Candle {
	return []model.Candle{{Timestamp: time.Now(), Close: close}}
}

func TestCacheServesWithinTTL(t *testing.T) {
	fetcher := &stubFetcher{responses: []fetchResponse{{series: oneBar(100)}}}
	c, _ := newTestCache(fetcher, &stubRefresher{}, nil)

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, outcome, err := c.Bars(context.Background(), "EPIC", model.TimeframeQuarter, 100)
	require.NoError(t, err)
	assert.Equal(t, obs.FetchOK, outcome)

	now = now.Add(14 * time.Minute)
	_, _, err = c.Bars(context.Background(), "EPIC", model.TimeframeQuarter, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)

	now = now.Add(2 * time.Minute)
	_, _, err = c.Bars(context.Background(), "EPIC", model.TimeframeQuarter, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCacheShortTimeframeNeverCached(t *testing.T) {
	fetcher := &stubFetcher{responses: []fetchResponse{{series: oneBar(100)}}}
	c, _ := newTestCache(fetcher, &stubRefresher{}, nil)

	for i := 0; i < 3; i++ {
		_, _, err := c.Bars(context.Background(), "EPIC", model.TimeframeFiveMinute, 100)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, fetcher.calls)
}

func TestCacheRetryExhaustion(t *testing.T) {
	boom := errors.New("gateway down")
	fetcher := &stubFetcher{responses: []fetchResponse{{err: boom}}}
	c, slept := newTestCache(fetcher, &stubRefresher{}, nil)

	series, outcome, err := c.Bars(context.Background(), "EPIC", model.TimeframeQuarter, 100)
	require.NoError(t, err)
	assert.Empty(t, series)
	assert.Equal(t, obs.FetchExhausted, outcome)
	assert.Equal(t, 3, fetcher.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *slept)
}

func TestCacheRefreshesSessionOnUnauthorized(t *testing.T) {
	fetcher := &stubFetcher{responses: []fetchResponse{
		{err: exception.ErrUnauthorized},
		{series: oneBar(100)},
	}}
	refresher := &stubRefresher{}
	c, slept := newTestCache(fetcher, refresher, nil)

	series, outcome, err := c.Bars(context.Background(), "EPIC", model.TimeframeQuarter, 100)
	require.NoError(t, err)
	assert.Len(t, series, 1)
	assert.Equal(t, obs.FetchOK, outcome)
	assert.Equal(t, 1, refresher.calls)
	assert.Empty(t, *slept)
}

func TestCacheAbortsOnBadRequest(t *testing.T) {
	fetcher := &stubFetcher{responses: []fetchResponse{{err: exception.ErrBadDataRequest}}}
	c, _ := newTestCache(fetcher, &stubRefresher{}, nil)

	_, _, err := c.Bars(context.Background(), "EPIC", model.TimeframeQuarter, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrBadDataRequest))
	assert.Equal(t, 1, fetcher.calls)
}

func TestCacheFallbackForShortTimeframe(t *testing.T) {
	fetcher := &stubFetcher{responses: []fetchResponse{{series: nil}}}
	fallback := &stubFallback{series: oneBar(101)}
	c, _ := newTestCache(fetcher, &stubRefresher{}, fallback)

	series, outcome, err := c.Bars(context.Background(), "EPIC", model.TimeframeFiveMinute, 100)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, obs.FetchFallback, outcome)

	// other timeframes stay empty instead of borrowing stream bars
	series, outcome, err = c.Bars(context.Background(), "EPIC", model.TimeframeQuarter, 100)
	require.NoError(t, err)
	assert.Empty(t, series)
	assert.Equal(t, obs.FetchEmpty, outcome)
}
