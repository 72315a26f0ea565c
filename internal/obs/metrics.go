// Package obs collects lightweight process counters: fetch outcomes,
// signal and order flow, cycle latency and per-strategy heartbeats.
package obs

import (
	"sync"
	"sync/atomic"
	"time"
)

// FetchOutcome classifies how a market-data fetch resolved. Exhausted
// retries and a genuinely empty response both hand the caller an empty
// series; the distinction stays observable here.
type FetchOutcome uint8

const (
	FetchOK FetchOutcome = iota
	FetchEmpty
	FetchExhausted
	FetchFallback
	fetchOutcomeCount
)

func (o FetchOutcome) String() string {
	switch o {
	case FetchOK:
		return "ok"
	case FetchEmpty:
		return "empty"
	case FetchExhausted:
		return "exhausted"
	case FetchFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Metrics is the process-wide counter set. All methods are nil-safe so
// optional wiring stays uncluttered.
type Metrics struct {
	fetchCounts [fetchOutcomeCount]uint64

	signalsDetected uint64
	signalsAccepted uint64
	ordersPlaced    uint64
	orderFailures   uint64
	stopUpdates     uint64
	cycles          uint64
	cycleErrors     uint64

	cycleLatency LatencyStats

	mu         sync.Mutex
	heartbeats map[string]time.Time
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	FetchCounts     map[FetchOutcome]uint64
	SignalsDetected uint64
	SignalsAccepted uint64
	OrdersPlaced    uint64
	OrderFailures   uint64
	StopUpdates     uint64
	Cycles          uint64
	CycleErrors     uint64
	CycleLatency    LatencySnapshot
	Heartbeats      map[string]time.Time
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{heartbeats: make(map[string]time.Time)}
}

// ObserveFetch records the outcome of one market-data fetch.
func (m *Metrics) ObserveFetch(outcome FetchOutcome) {
	if m == nil {
		return
	}
	idx := int(outcome)
	if idx >= 0 && idx < len(m.fetchCounts) {
		atomic.AddUint64(&m.fetchCounts[idx], 1)
	}
}

// IncSignalsDetected counts raw detector output.
func (m *Metrics) IncSignalsDetected(n int) {
	if m == nil || n <= 0 {
		return
	}
	atomic.AddUint64(&m.signalsDetected, uint64(n))
}

// IncSignalAccepted counts signals that survived the filter chain.
func (m *Metrics) IncSignalAccepted() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.signalsAccepted, 1)
}

// IncOrderPlaced counts successful order submissions.
func (m *Metrics) IncOrderPlaced() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.ordersPlaced, 1)
}

// IncOrderFailure counts rejected or failed submissions.
func (m *Metrics) IncOrderFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.orderFailures, 1)
}

// IncStopUpdate counts successful trailing-stop advances.
func (m *Metrics) IncStopUpdate() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.stopUpdates, 1)
}

// IncCycle counts completed scheduler cycles.
func (m *Metrics) IncCycle() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cycles, 1)
}

// IncCycleError counts cycles that reported a failure.
func (m *Metrics) IncCycleError() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.cycleErrors, 1)
}

// ObserveCycle measures one scheduler cycle's duration.
func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleLatency.Observe(d)
}

// Heartbeat records liveness for a strategy.
func (m *Metrics) Heartbeat(strategy string, at time.Time) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.heartbeats[strategy] = at
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	fetches := make(map[FetchOutcome]uint64)
	for i := range m.fetchCounts {
		if v := atomic.LoadUint64(&m.fetchCounts[i]); v > 0 {
			fetches[FetchOutcome(i)] = v
		}
	}
	m.mu.Lock()
	beats := make(map[string]time.Time, len(m.heartbeats))
	for k, v := range m.heartbeats {
		beats[k] = v
	}
	m.mu.Unlock()
	return Snapshot{
		FetchCounts:     fetches,
		SignalsDetected: atomic.LoadUint64(&m.signalsDetected),
		SignalsAccepted: atomic.LoadUint64(&m.signalsAccepted),
		OrdersPlaced:    atomic.LoadUint64(&m.ordersPlaced),
		OrderFailures:   atomic.LoadUint64(&m.orderFailures),
		StopUpdates:     atomic.LoadUint64(&m.stopUpdates),
		Cycles:          atomic.LoadUint64(&m.cycles),
		CycleErrors:     atomic.LoadUint64(&m.cycleErrors),
		CycleLatency:    m.cycleLatency.Snapshot(),
		Heartbeats:      beats,
	}
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
