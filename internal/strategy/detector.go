// Package strategy runs pluggable signal detectors over enriched candle
// series, then a short-circuiting filter chain and a confidence scorer.
package strategy

import (
	"math"

	"main/internal/indicator"
	"main/internal/model"
)

var inf = math.Inf(1)

const (
	minMomentumCandles = 20
	wickDispersionMult = 1.5
	bodyDispersionMult = 0.3
)

// Detector turns an ordered, enriched candle series into zero or more
// candidate signals.
type Detector interface {
	Detect(series []indicator.Enriched) []model.Signal
}

// Momentum is the EMA-cross trend detector: one signal per pass, buy when
// the fast average leads, sell when it trails, nothing when equal or the
// series is too short.
type Momentum struct {
	FastSpan int
	SlowSpan int
}

// NewMomentum creates the detector with the tuned 10/20 spans.
func NewMomentum() Momentum {
	return Momentum{FastSpan: 10, SlowSpan: 20}
}

func (d Momentum) Detect(series []indicator.Enriched) []model.Signal {
	if len(series) < minMomentumCandles {
		return nil
	}

	closes := make([]float64, len(series))
	for i, c := range series {
		closes[i] = c.Close
	}
	fast := indicator.EMA(closes, d.FastSpan)
	slow := indicator.EMA(closes, d.SlowSpan)

	last := series[len(series)-1]
	var dir model.Direction
	switch {
	case fast[len(fast)-1] > slow[len(slow)-1]:
		dir = model.DirectionBuy
	case fast[len(fast)-1] < slow[len(slow)-1]:
		dir = model.DirectionSell
	default:
		return nil
	}

	sig := model.Signal{
		Direction:   dir,
		Price:       last.Close,
		Dispersion:  last.Dispersion,
		Volume:      last.Volume,
		AvgVolume:   last.AvgVolume,
		EMADistance: last.EMADistance,
		Trend:       last.Trend,
		Session:     last.Session,
		Breakout:    swingBreakAt(series, len(series)-1) == dir,
	}
	return []model.Signal{sig}
}

// WickRejection emits one signal per candle whose rejecting wick is at
// least 1.5x the candle's dispersion while the body stays within 0.3x.
type WickRejection struct{}

func (WickRejection) Detect(series []indicator.Enriched) []model.Signal {
	var out []model.Signal
	for _, c := range series {
		body := c.Body()
		wick := rejectingWick(c.Candle)
		disp := c.Dispersion

		if disp <= 0 || wick < wickDispersionMult*disp || body > bodyDispersionMult*disp {
			continue
		}

		dir := model.DirectionBuy
		if c.Bearish() {
			dir = model.DirectionSell
		}
		out = append(out, model.Signal{
			Direction:   dir,
			Price:       c.Close,
			Dispersion:  disp,
			WickRatio:   wickRatio(wick, body),
			BodySize:    body,
			WickSize:    wick,
			Volume:      c.Volume,
			AvgVolume:   c.AvgVolume,
			EMADistance: c.EMADistance,
			Trend:       c.Trend,
			Session:     c.Session,
		})
	}
	return out
}

// rejectingWick measures the larger excursion beyond close/open on the
// side the candle rejected: the upper wick for bearish candles, the lower
// wick for bullish ones.
func rejectingWick(c model.Candle) float64 {
	if c.Bearish() {
		upper := c.High - c.Close
		if alt := c.High - c.Open; alt > upper {
			upper = alt
		}
		return upper
	}
	lower := c.Open - c.Low
	if alt := c.Close - c.Low; alt > lower {
		lower = alt
	}
	return lower
}

// wickRatio treats a zero body as unbounded rejection.
func wickRatio(wick, body float64) float64 {
	if body == 0 {
		return inf
	}
	return wick / body
}

// SwingBreak scans consecutive 3-candle windows and signals when three
// monotonically rising highs are broken above (buy) or three falling lows
// are broken below (sell).
type SwingBreak struct{}

func (SwingBreak) Detect(series []indicator.Enriched) []model.Signal {
	var out []model.Signal
	for i := 3; i < len(series); i++ {
		dir := swingBreakAt(series, i)
		if dir == model.DirectionUnknown {
			continue
		}
		c := series[i]
		out = append(out, model.Signal{
			Direction:   dir,
			Price:       c.Close,
			Dispersion:  c.Dispersion,
			Breakout:    true,
			Volume:      c.Volume,
			AvgVolume:   c.AvgVolume,
			EMADistance: c.EMADistance,
			Trend:       c.Trend,
			Session:     c.Session,
		})
	}
	return out
}

// swingBreakAt checks whether the candle at index i completes a 3-candle
// swing break and returns its direction, or DirectionUnknown.
func swingBreakAt(series []indicator.Enriched, i int) model.Direction {
	if i < 3 || i >= len(series) {
		return model.DirectionUnknown
	}
	a, b, c := series[i-3], series[i-2], series[i-1]
	cur := series[i]

	if a.High < b.High && b.High < c.High && cur.Close > c.High {
		return model.DirectionBuy
	}
	if a.Low > b.Low && b.Low > c.Low && cur.Close < c.Low {
		return model.DirectionSell
	}
	return model.DirectionUnknown
}
