package strategy

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/model"
)

// Trader places one trade for an accepted signal.
type Trader interface {
	Execute(ctx context.Context, epic string, dir model.Direction, stop, target float64, confidence int, strategyTag string) error
}

// Bot binds a pipeline to its instruments and a trader. One bot is one
// strategy as the scheduler sees it.
type Bot struct {
	pipeline *Pipeline
	trader   Trader
	markets  []string
}

// NewBot creates a bot evaluating the given instruments in order.
func NewBot(pipeline *Pipeline, trader Trader, markets []string) *Bot {
	return &Bot{pipeline: pipeline, trader: trader, markets: markets}
}

// Name returns the strategy tag.
func (b *Bot) Name() string {
	return b.pipeline.Name()
}

// RunCycle evaluates every instrument sequentially and executes each
// accepted signal. A failure on one instrument never blocks the rest;
// the last failure is returned for the cycle boundary to report.
func (b *Bot) RunCycle(ctx context.Context, minConfidence int) error {
	var lastErr error
	for _, epic := range b.markets {
		signals, err := b.pipeline.Evaluate(ctx, epic, minConfidence)
		if err != nil {
			logs.Errorf("%s evaluate %s, err: %+v", b.Name(), epic, err)
			lastErr = errors.Wrapf(err, "%s: %s", b.Name(), epic)
			continue
		}
		for _, sig := range signals {
			if err := b.trader.Execute(ctx, epic, sig.Direction, sig.Stop, sig.Target, sig.Confidence, b.Name()); err != nil {
				logs.Errorf("%s execute %s, err: %+v", b.Name(), epic, err)
				lastErr = errors.Wrapf(err, "%s: %s", b.Name(), epic)
			}
		}
	}
	return lastErr
}
