package trailing

import (
	"context"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/obs"
)

type registryEntry struct {
	cancel context.CancelFunc
	gen    uint64
}

// Registry supervises the monitors, keyed by deal reference. It replaces
// detached fire-and-forget goroutines: every monitor can be canceled on a
// position-close notification and all of them stop together on shutdown.
type Registry struct {
	bars     BarSource
	updater  StopUpdater
	interval time.Duration
	metrics  *obs.Metrics

	mu      sync.Mutex
	entries map[string]registryEntry
	nextGen uint64
	wg      sync.WaitGroup
}

// NewRegistry creates an empty registry. interval <= 0 uses the monitor
// default.
func NewRegistry(bars BarSource, updater StopUpdater, interval time.Duration, metrics *obs.Metrics) *Registry {
	return &Registry{
		bars:     bars,
		updater:  updater,
		interval: interval,
		metrics:  metrics,
		entries:  make(map[string]registryEntry),
	}
}

// Spawn starts a supervised monitor for the position. A second spawn for
// the same deal reference replaces the first.
func (r *Registry) Spawn(ctx context.Context, state State) {
	monitor := NewMonitor(state, r.bars, r.updater, r.interval, r.metrics)
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if prev, ok := r.entries[state.DealRef]; ok {
		prev.cancel()
	}
	r.nextGen++
	gen := r.nextGen
	r.entries[state.DealRef] = registryEntry{cancel: cancel, gen: gen}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.release(state.DealRef, gen)
		monitor.Run(ctx)
	}()
	logs.Infof("trailing monitor started for %s (%s %s)", state.DealRef, state.Epic, state.Direction)
}

// Stop cancels the monitor for one position, typically on a close
// notification.
func (r *Registry) Stop(dealRef string) {
	r.mu.Lock()
	entry, ok := r.entries[dealRef]
	r.mu.Unlock()
	if ok {
		entry.cancel()
	}
}

// Shutdown cancels every monitor and waits for them to exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	for _, entry := range r.entries {
		entry.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Len returns the number of live monitors.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// release drops the registry entry unless a newer monitor already
// replaced it.
func (r *Registry) release(dealRef string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.entries[dealRef]; ok && entry.gen == gen {
		delete(r.entries, dealRef)
	}
}
