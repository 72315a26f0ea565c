package model

// Direction is the side of a signal or order.
type Direction uint8

const (
	DirectionUnknown Direction = iota
	DirectionBuy
	DirectionSell
)

func (d Direction) String() string {
	switch d {
	case DirectionBuy:
		return "buy"
	case DirectionSell:
		return "sell"
	default:
		return "unknown"
	}
}

// SessionTag labels the trading session a candle falls in.
type SessionTag string

const (
	SessionUK  SessionTag = "UK"
	SessionUS  SessionTag = "US"
	SessionOff SessionTag = "OFF"
)

// Favorable reports whether the session is one the confidence scorer
// rewards.
func (s SessionTag) Favorable() bool {
	return s == SessionUK || s == SessionUS
}

// TrendState labels the moving-average regime of a series.
type TrendState string

const (
	TrendUp    TrendState = "up"
	TrendDown  TrendState = "down"
	TrendRange TrendState = "range"
)

// Signal is one candidate trade produced by a detector. It lives for a
// single pipeline pass and is never persisted.
type Signal struct {
	Direction  Direction
	Price      float64
	Dispersion float64

	Breakout    bool
	WickRatio   float64
	BodySize    float64
	WickSize    float64
	Volume      float64
	AvgVolume   float64
	EMADistance float64
	Trend       TrendState
	Session     SessionTag

	// Filled by the pipeline once the signal is accepted.
	Confidence int
	Stop       float64
	Target     float64
}
