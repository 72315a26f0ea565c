// Package indicator computes the rolling statistics the detectors and
// filters consume: exponential moving averages, rolling dispersion, VWAP
// and per-candle enrichment.
package indicator

import (
	"math"
	"time"

	"main/internal/model"
)

// EMA returns the exponential moving average of values with the given
// span, aligned with the input (out[i] covers values[:i+1]).
func EMA(values []float64, span int) []float64 {
	if span <= 0 || len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// RollingStd returns the rolling sample standard deviation over the given
// period. Entries before a full window is available are zero.
func RollingStd(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period < 2 || len(values) < period {
		return out
	}
	for i := period - 1; i < len(values); i++ {
		window := values[i-period+1 : i+1]
		mean := 0.0
		for _, v := range window {
			mean += v
		}
		mean /= float64(period)
		acc := 0.0
		for _, v := range window {
			d := v - mean
			acc += d * d
		}
		out[i] = math.Sqrt(acc / float64(period-1))
	}
	return out
}

// RollingMean returns the rolling mean over the given period. Entries
// before a full window use the mean of what is available so far.
func RollingMean(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		n := i + 1
		if n > period {
			sum -= values[i-period]
			n = period
		}
		out[i] = sum / float64(n)
	}
	return out
}

// VWAP computes the volume-weighted average close over the series.
// ok is false when the series carries no volume.
func VWAP(series []model.Candle) (level float64, ok bool) {
	var pv, vol float64
	for _, c := range series {
		pv += c.Close * c.Volume
		vol += c.Volume
	}
	if vol == 0 {
		return 0, false
	}
	return pv / vol, true
}

// Enriched is a candle annotated with the rolling statistics the signal
// pipeline reads per candle.
type Enriched struct {
	model.Candle

	Dispersion  float64
	AvgVolume   float64
	EMADistance float64
	Trend       model.TrendState
	Session     model.SessionTag
}

// Params controls enrichment periods. Zero values fall back to the
// defaults the strategies were tuned with.
type Params struct {
	FastSpan   int
	SlowSpan   int
	StdPeriod  int
	VolumeMean int
}

func (p Params) withDefaults() Params {
	if p.FastSpan == 0 {
		p.FastSpan = 10
	}
	if p.SlowSpan == 0 {
		p.SlowSpan = 20
	}
	if p.StdPeriod == 0 {
		p.StdPeriod = 14
	}
	if p.VolumeMean == 0 {
		p.VolumeMean = 20
	}
	return p
}

// Enrich annotates every candle of a series. loc fixes the timezone used
// for session tagging; nil means UTC.
func Enrich(series []model.Candle, p Params, loc *time.Location) []Enriched {
	p = p.withDefaults()
	if loc == nil {
		loc = time.UTC
	}

	closes := model.Closes(series)
	volumes := make([]float64, len(series))
	for i, c := range series {
		volumes[i] = c.Volume
	}

	fast := EMA(closes, p.FastSpan)
	slow := EMA(closes, p.SlowSpan)
	std := RollingStd(closes, p.StdPeriod)
	avgVol := RollingMean(volumes, p.VolumeMean)

	out := make([]Enriched, len(series))
	for i, c := range series {
		e := Enriched{
			Candle:     c,
			Dispersion: std[i],
			AvgVolume:  avgVol[i],
			Session:    sessionAt(c.Timestamp.In(loc)),
			Trend:      model.TrendRange,
		}
		if fast != nil && slow != nil {
			e.EMADistance = math.Abs(fast[i] - slow[i])
			switch {
			case fast[i] > slow[i]:
				e.Trend = model.TrendUp
			case fast[i] < slow[i]:
				e.Trend = model.TrendDown
			}
		}
		out[i] = e
	}
	return out
}

// sessionAt maps a local timestamp onto the session tags the confidence
// scorer knows about. The US tag wins the London/New York overlap.
func sessionAt(ts time.Time) model.SessionTag {
	h := ts.Hour()
	switch {
	case h >= 14 && h < 21:
		return model.SessionUS
	case h >= 8 && h < 14:
		return model.SessionUK
	default:
		return model.SessionOff
	}
}
