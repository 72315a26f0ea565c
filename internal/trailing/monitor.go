// Package trailing maintains protective stops on open positions. One
// monitor per position ratchets the stop toward price on a fixed interval
// and never loosens it; a supervised registry keyed by deal reference
// owns monitor lifetimes.
package trailing

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/obs"
)

const defaultInterval = 30 * time.Second

// BarSource supplies the most recent short-interval bar.
type BarSource interface {
	Bars(ctx context.Context, epic string, tf model.Timeframe, max int) ([]model.Candle, obs.FetchOutcome, error)
}

// StopUpdater applies a new stop level to the external position.
type StopUpdater interface {
	UpdateStop(ctx context.Context, dealRef string, stop float64) error
}

// State is one monitor's exclusive view of its position. Never shared
// across monitors.
type State struct {
	DealRef     string
	Epic        string
	Direction   model.Direction
	Dispersion  float64
	InitialStop float64
	CurrentStop float64
}

// Monitor tracks a single open position.
type Monitor struct {
	state    State
	bars     BarSource
	updater  StopUpdater
	interval time.Duration
	metrics  *obs.Metrics
}

// NewMonitor creates a monitor for the position. interval <= 0 uses the
// 30s default.
func NewMonitor(state State, bars BarSource, updater StopUpdater, interval time.Duration, metrics *obs.Metrics) *Monitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	if state.CurrentStop == 0 {
		state.CurrentStop = state.InitialStop
	}
	return &Monitor{
		state:    state,
		bars:     bars,
		updater:  updater,
		interval: interval,
		metrics:  metrics,
	}
}

// CurrentStop returns the stop the monitor believes is held.
func (m *Monitor) CurrentStop() float64 {
	return m.state.CurrentStop
}

// Run ticks until the context is canceled. A failed fetch or update skips
// the tick; the next interval tries again.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Step(ctx)
		}
	}
}

// Step performs one trailing pass: fetch the latest one-minute close,
// compute the candidate stop one dispersion behind it, and apply it only
// when strictly more favorable than the held stop. The in-memory stop
// advances only after the external update succeeds, so the ratchet holds
// even when an update fails mid-flight.
func (m *Monitor) Step(ctx context.Context) {
	series, _, err := m.bars.Bars(ctx, m.state.Epic, model.TimeframeMinute, 1)
	if err != nil || len(series) == 0 {
		return
	}
	lastClose := series[len(series)-1].Close

	candidate := lastClose - m.state.Dispersion
	if m.state.Direction == model.DirectionSell {
		candidate = lastClose + m.state.Dispersion
	}
	if !m.favorable(candidate) {
		return
	}

	if err := m.updater.UpdateStop(ctx, m.state.DealRef, candidate); err != nil {
		logs.Errorf("trail %s stop -> %.2f, err: %+v", m.state.DealRef, candidate, err)
		return
	}
	m.state.CurrentStop = candidate
	m.metrics.IncStopUpdate()
	logs.Infof("trailed %s stop to %.2f", m.state.DealRef, candidate)
}

// favorable reports whether the candidate tightens the stop: strictly
// greater for longs, strictly lesser for shorts.
func (m *Monitor) favorable(candidate float64) bool {
	if m.state.Direction == model.DirectionBuy {
		return candidate > m.state.CurrentStop
	}
	return candidate < m.state.CurrentStop
}
