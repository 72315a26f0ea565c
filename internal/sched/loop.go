package sched

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/notify"
	"main/internal/obs"
	"main/internal/ops"
)

// Strategy is one configured trading strategy as the loop drives it.
type Strategy interface {
	Name() string
	RunCycle(ctx context.Context, minConfidence int) error
}

// ControlProvider supplies the operator flags, polled once per cycle.
type ControlProvider interface {
	Load() ops.Controls
}

// Broadcaster pushes cycle status to dashboard clients.
type Broadcaster interface {
	BroadcastStatus(v any)
}

// Config assembles a scheduler loop.
type Config struct {
	Strategies []Strategy
	Clock      *Clock
	Controls   ControlProvider
	Notifier   notify.Notifier
	Metrics    *obs.Metrics
	Hub        Broadcaster // optional

	Interval             time.Duration
	DailySummaryHour     int
	WeeklySummaryWeekday time.Weekday
	WeeklySummaryHour    int
}

// Scheduler runs the fixed-interval cycle: heartbeats, control poll,
// window gate, strategies in configured order, summary notifications.
// Any failure inside a cycle is reported and the loop continues.
type Scheduler struct {
	cfg Config

	dailySent  bool
	weeklySent bool
}

// New creates a scheduler. Interval <= 0 defaults to one minute.
func New(cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.DailySummaryHour == 0 {
		cfg.DailySummaryHour = 20
	}
	if cfg.WeeklySummaryHour == 0 {
		cfg.WeeklySummaryHour = 21
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop{}
	}
	return &Scheduler{cfg: cfg}
}

// Run cycles until the context ends. The first cycle starts immediately.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		s.runCycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logs.Errorf("cycle panic: %+v", r)
			s.cfg.Metrics.IncCycleError()
			s.cfg.Notifier.Notify(ctx, notify.KindCrash, map[string]any{"panic": r})
		}
	}()

	now := s.cfg.Clock.Now()
	for _, st := range s.cfg.Strategies {
		s.cfg.Metrics.Heartbeat(st.Name(), now)
	}

	controls := s.cfg.Controls.Load()
	if !controls.Stop && s.cfg.Clock.TradingOpen() {
		for _, st := range s.cfg.Strategies {
			if err := st.RunCycle(ctx, controls.MinConfidence); err != nil {
				s.cfg.Metrics.IncCycleError()
				s.cfg.Notifier.Notify(ctx, notify.KindCrash, map[string]any{
					"strategy": st.Name(),
					"error":    err.Error(),
				})
			}
		}
	}

	s.summaries(ctx, now)

	s.cfg.Metrics.IncCycle()
	s.cfg.Metrics.ObserveCycle(time.Since(started))

	if s.cfg.Hub != nil {
		s.cfg.Hub.BroadcastStatus(s.cfg.Metrics.Snapshot())
	}
}

// summaries triggers the daily and weekly notifications exactly once per
// window; the seen-flags reset as soon as the clock leaves the window.
func (s *Scheduler) summaries(ctx context.Context, now time.Time) {
	if now.Hour() == s.cfg.DailySummaryHour && !s.dailySent {
		s.cfg.Notifier.Notify(ctx, notify.KindDailySummary, summaryPayload(now, s.cfg.Metrics.Snapshot()))
		s.dailySent = true
	}
	if now.Hour() < s.cfg.DailySummaryHour {
		s.dailySent = false
	}

	weeklyDay := now.Weekday() == s.cfg.WeeklySummaryWeekday
	if weeklyDay && now.Hour() == s.cfg.WeeklySummaryHour && !s.weeklySent {
		s.cfg.Notifier.Notify(ctx, notify.KindWeeklySummary, summaryPayload(now, s.cfg.Metrics.Snapshot()))
		s.weeklySent = true
	}
	if !weeklyDay || now.Hour() < s.cfg.WeeklySummaryHour {
		s.weeklySent = false
	}
}

func summaryPayload(now time.Time, snap obs.Snapshot) map[string]any {
	return map[string]any{
		"asOf":            now.Format(time.RFC3339),
		"cycles":          snap.Cycles,
		"cycleErrors":     snap.CycleErrors,
		"signalsDetected": snap.SignalsDetected,
		"signalsAccepted": snap.SignalsAccepted,
		"ordersPlaced":    snap.OrdersPlaced,
		"orderFailures":   snap.OrderFailures,
		"stopUpdates":     snap.StopUpdates,
	}
}
