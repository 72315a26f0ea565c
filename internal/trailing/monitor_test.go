package trailing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/model"
	"main/internal/obs"
)

type stubBarSource struct {
	close float64
	err   error
}

func (s *stubBarSource) Bars(context.Context, string, model.Timeframe, int) ([]model.Candle, obs.FetchOutcome, error) {
	if s.err != nil {
		return nil, obs.FetchExhausted, s.err
	}
	if s.close == 0 {
		return nil, obs.FetchEmpty, nil
	}
	return []model.Candle{{Close: s.close}}, obs.FetchOK, nil
}

type stubUpdater struct {
	stops []float64
	err   error
}

func (s *stubUpdater) UpdateStop(_ context.Context, _ string, stop float64) error {
	if s.err != nil {
		return s.err
	}
	s.stops = append(s.stops, stop)
	return nil
}

func newTestMonitor(dir model.Direction, bars *stubBarSource, updater *stubUpdater) *Monitor {
	return NewMonitor(State{
		DealRef:     "deal-1",
		Epic:        "EPIC",
		Direction:   dir,
		Dispersion:  5,
		InitialStop: 95,
		CurrentStop: 95,
	}, bars, updater, time.Hour, obs.NewMetrics())
}

func TestMonitorRatchetsLongStop(t *testing.T) {
	bars := &stubBarSource{close: 102}
	updater := &stubUpdater{}
	m := newTestMonitor(model.DirectionBuy, bars, updater)

	m.Step(context.Background())
	require.Equal(t, []float64{97}, updater.stops)
	assert.InDelta(t, 97, m.CurrentStop(), 1e-9)

	// price retreats, stop holds
	bars.close = 101
	m.Step(context.Background())
	assert.Equal(t, []float64{97}, updater.stops)
	assert.InDelta(t, 97, m.CurrentStop(), 1e-9)

	// new high advances the stop again
	bars.close = 110
	m.Step(context.Background())
	assert.Equal(t, []float64{97, 105}, updater.stops)
}

func TestMonitorRatchetsShortStop(t *testing.T) {
	bars := &stubBarSource{close: 88}
	updater := &stubUpdater{}
	m := NewMonitor(State{
		DealRef:     "deal-2",
		Epic:        "EPIC",
		Direction:   model.DirectionSell,
		Dispersion:  5,
		InitialStop: 105,
		CurrentStop: 105,
	}, bars, updater, time.Hour, obs.NewMetrics())

	m.Step(context.Background())
	require.Equal(t, []float64{93}, updater.stops)

	bars.close = 90
	m.Step(context.Background())
	assert.Equal(t, []float64{93}, updater.stops)
}

func TestMonitorSkipsOnFetchFailure(t *testing.T) {
	bars := &stubBarSource{err: assert.AnError}
	updater := &stubUpdater{}
	m := newTestMonitor(model.DirectionBuy, bars, updater)

	m.Step(context.Background())
	assert.Empty(t, updater.stops)
	assert.InDelta(t, 95, m.CurrentStop(), 1e-9)
}

func TestMonitorHoldsStopWhenUpdateFails(t *testing.T) {
	bars := &stubBarSource{close: 110}
	updater := &stubUpdater{err: assert.AnError}
	m := newTestMonitor(model.DirectionBuy, bars, updater)

	m.Step(context.Background())
	// in-memory stop only advances after the external update succeeds
	assert.InDelta(t, 95, m.CurrentStop(), 1e-9)

	updater.err = nil
	m.Step(context.Background())
	assert.Equal(t, []float64{105}, updater.stops)
	assert.InDelta(t, 105, m.CurrentStop(), 1e-9)
}

func TestRegistryLifecycle(t *testing.T) {
	bars := &stubBarSource{close: 100}
	updater := &stubUpdater{}
	r := NewRegistry(bars, updater, time.Hour, obs.NewMetrics())

	r.Spawn(context.Background(), State{DealRef: "a", Epic: "EPIC", Direction: model.DirectionBuy, Dispersion: 5, InitialStop: 95})
	r.Spawn(context.Background(), State{DealRef: "b", Epic: "EPIC", Direction: model.DirectionSell, Dispersion: 5, InitialStop: 105})
	assert.Equal(t, 2, r.Len())

	r.Stop("a")
	require.Eventually(t, func() bool { return r.Len() == 1 }, time.Second, 5*time.Millisecond)

	r.Shutdown()
	assert.Equal(t, 0, r.Len())
}

func TestRegistryReplacesSameDealRef(t *testing.T) {
	bars := &stubBarSource{close: 100}
	updater := &stubUpdater{}
	r := NewRegistry(bars, updater, time.Hour, obs.NewMetrics())

	r.Spawn(context.Background(), State{DealRef: "a", Epic: "EPIC", Direction: model.DirectionBuy, Dispersion: 5, InitialStop: 95})
	r.Spawn(context.Background(), State{DealRef: "a", Epic: "EPIC", Direction: model.DirectionBuy, Dispersion: 5, InitialStop: 96})
	assert.Equal(t, 1, r.Len())

	r.Shutdown()
	assert.Equal(t, 0, r.Len())
}
