package model

import "time"

// Timeframe is the broker-side bar resolution identifier. The string value
// is used verbatim in the historical-prices request path.
type Timeframe string

const (
	TimeframeMinute     Timeframe = "1MINUTE"
	TimeframeFiveMinute Timeframe = "5MINUTE"
	TimeframeQuarter    Timeframe = "15MINUTE"
	TimeframeHour       Timeframe = "HOUR"
	TimeframeDaily      Timeframe = "DAILY"
)

// Valid reports whether the timeframe is one the broker accepts.
func (tf Timeframe) Valid() bool {
	switch tf {
	case TimeframeMinute, TimeframeFiveMinute, TimeframeQuarter, TimeframeHour, TimeframeDaily:
		return true
	default:
		return false
	}
}

// Candle is one OHLCV bar. Immutable once fetched; series are ordered
// oldest first.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Body returns the absolute close-open distance.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Bearish reports whether the candle closed below its open.
func (c Candle) Bearish() bool {
	return c.Close < c.Open
}

// Closes extracts closing prices from a series, oldest first.
func Closes(series []Candle) []float64 {
	out := make([]float64, len(series))
	for i, c := range series {
		out[i] = c.Close
	}
	return out
}
