package strategy

import (
	"main/internal/indicator"
	"main/internal/model"
)

// Band is the volatility admission band. Dispersion must lie strictly
// inside it; the bounds are in instrument points and tuned per market in
// production.
type Band struct {
	Low  float64
	High float64
}

// DefaultBand is the band the strategies shipped with.
var DefaultBand = Band{Low: 5, High: 25}

// ConfirmStructure requires the reference series to close in the signal's
// direction: last close above the previous for buys, below for sells.
// Fewer than two reference candles pass unconditionally.
func ConfirmStructure(ref []indicator.Enriched, sig model.Signal) bool {
	if len(ref) < 2 {
		return true
	}
	last := ref[len(ref)-1].Close
	prev := ref[len(ref)-2].Close
	if sig.Direction == model.DirectionBuy {
		return last > prev
	}
	return last < prev
}

// PriorSessionBreakout requires the signal price beyond the prior
// session's extreme: above the high for buys, below the low for sells.
// Missing extremes reject regardless of direction.
func PriorSessionBreakout(sig model.Signal, priorHigh, priorLow float64, ok bool) bool {
	if !ok {
		return false
	}
	if sig.Direction == model.DirectionBuy {
		return sig.Price > priorHigh
	}
	return sig.Price < priorLow
}

// VolatilityOK gates on the dispersion band.
func (b Band) VolatilityOK(sig model.Signal) bool {
	return sig.Dispersion > b.Low && sig.Dispersion < b.High
}

// VWAPBias requires price above the reference level for buys, below for
// sells. An unavailable level rejects.
func VWAPBias(sig model.Signal, level float64, ok bool) bool {
	if !ok {
		return false
	}
	if sig.Direction == model.DirectionBuy {
		return sig.Price > level
	}
	return sig.Price < level
}

// TrendConfluence requires the higher timeframe's moving-average relation
// to confirm the signal's direction.
func TrendConfluence(sig model.Signal, higher []indicator.Enriched) bool {
	if len(higher) < minMomentumCandles {
		return false
	}
	trend := higher[len(higher)-1].Trend
	if sig.Direction == model.DirectionBuy {
		return trend == model.TrendUp
	}
	return trend == model.TrendDown
}

// StopTarget derives the protective stop and target from the entry and
// dispersion: one dispersion against the trade for the stop, two in its
// favor for the target.
func StopTarget(sig model.Signal) (stop, target float64) {
	if sig.Direction == model.DirectionBuy {
		return sig.Price - sig.Dispersion, sig.Price + 2*sig.Dispersion
	}
	return sig.Price + sig.Dispersion, sig.Price - 2*sig.Dispersion
}
