// Package executor turns accepted signals into live orders: validate the
// risk range, size the position, submit the market order, then hand the
// filled position to a trailing monitor and journal the trade.
package executor

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	yerrors "github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/exception"
	"main/internal/journal"
	"main/internal/model"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/risk"
	"main/internal/trailing"
)

// BalanceReader supplies the balance the sizer reads. Writes stay with
// the ledger's owner.
type BalanceReader interface {
	Balance() float64
}

// OrderAPI is the order-placement slice of the broker client.
type OrderAPI interface {
	PlaceOrder(ctx context.Context, req broker.OrderRequest) (string, error)
}

// Executor submits sized orders and spawns one trailing monitor per
// filled order.
type Executor struct {
	balance  BalanceReader
	sizer    risk.Sizer
	markets  map[string]risk.InstrumentMeta
	orders   OrderAPI
	journal  journal.Journal
	notifier notify.Notifier
	monitors *trailing.Registry
	metrics  *obs.Metrics
	now      func() time.Time
}

// New wires an executor.
func New(
	balance BalanceReader,
	sizer risk.Sizer,
	markets map[string]risk.InstrumentMeta,
	orders OrderAPI,
	sink journal.Journal,
	notifier notify.Notifier,
	monitors *trailing.Registry,
	metrics *obs.Metrics,
) *Executor {
	return &Executor{
		balance:  balance,
		sizer:    sizer,
		markets:  markets,
		orders:   orders,
		journal:  sink,
		notifier: notifier,
		monitors: monitors,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Execute places one trade for an accepted signal.
//
// A zero-width stop/target range fails with ErrInvalidRiskRange. A size
// below the instrument minimum skips the trade silently. A submission
// failure is logged and the trade never reaches the journal; on success
// the monitor is started and the journal entry is appended regardless of
// monitor startup outcome.
func (e *Executor) Execute(ctx context.Context, epic string, dir model.Direction, stop, target float64, confidence int, strategyTag string) error {
	if stop == target {
		return yerrors.Wrapf(exception.ErrInvalidRiskRange, "epic: %s, level: %.2f", epic, stop)
	}

	// Entry and dispersion are recovered from the protective range: the
	// target sits two dispersions past entry, the stop one behind it.
	dispersion := math.Abs(target-stop) / 3
	entry := stop + dispersion
	if target < stop {
		entry = stop - dispersion
	}

	meta, ok := e.markets[epic]
	if !ok {
		return yerrors.Wrapf(exception.ErrUnknownMarket, "epic: %s", epic)
	}

	size, err := e.sizer.Size(e.balance.Balance(), dispersion, meta)
	if err != nil {
		if errors.Is(err, exception.ErrSizeTooSmall) {
			logs.Infof("skip %s %s: %v", epic, dir, err)
			return nil
		}
		return err
	}

	req := broker.OrderRequest{
		Epic:          epic,
		Direction:     directionLabel(dir),
		Size:          size,
		OrderType:     "MARKET",
		StopLevel:     stop,
		LimitLevel:    target,
		DealReference: uuid.NewString(),
	}
	dealRef, err := e.orders.PlaceOrder(ctx, req)
	if err != nil {
		// At-most-once placement: log and walk away. No journal entry, no
		// monitor, no retry.
		logs.Errorf("order submission failed for %s, err: %+v", epic, err)
		e.metrics.IncOrderFailure()
		return nil
	}
	e.metrics.IncOrderPlaced()
	logs.Infof("order placed: %s %s size=%.2f dealRef=%s", epic, dir, size, dealRef)

	e.monitors.Spawn(ctx, trailing.State{
		DealRef:     dealRef,
		Epic:        epic,
		Direction:   dir,
		Dispersion:  dispersion,
		InitialStop: stop,
		CurrentStop: stop,
	})

	if err := e.journal.Append(ctx, journal.Entry{
		PlacedAt:   e.now(),
		Instrument: epic,
		Direction:  dir.String(),
		Stop:       stop,
		Target:     target,
		Confidence: confidence,
		Strategy:   strategyTag,
	}); err != nil {
		logs.Errorf("journal append failed for %s, err: %+v", dealRef, err)
	}

	e.notifier.Notify(ctx, notify.KindTradePlaced, map[string]any{
		"instrument": epic,
		"direction":  dir.String(),
		"size":       size,
		"entry":      entry,
		"stop":       stop,
		"target":     target,
		"confidence": confidence,
		"strategy":   strategyTag,
		"dealRef":    dealRef,
	})
	return nil
}

func directionLabel(d model.Direction) string {
	if d == model.DirectionSell {
		return "SELL"
	}
	return "BUY"
}
