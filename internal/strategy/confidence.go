package strategy

import "main/internal/model"

// Confidence weights. Four independent boolean contributions, capped at
// the maximum score.
const (
	weightQuality     = 30
	weightVolume      = 20
	weightEMADistance = 20
	weightSession     = 20
	maxConfidence     = 100

	defaultWickRatioMin   = 2.0
	defaultEMADistanceMin = 5.0
)

// Scorer computes the 0-100 confidence score. The quality contribution is
// strategy-specific: momentum-style strategies feed the breakout flag,
// wick strategies the wick ratio. Scoring them through one shared
// breakout-or-wick predicate conflated unrelated detector outputs, so
// each pipeline carries its own scorer.
type Scorer struct {
	UseBreakout    bool
	UseWickRatio   bool
	WickRatioMin   float64
	EMADistanceMin float64
}

// BreakoutScorer scores momentum and swing-break signals.
func BreakoutScorer() Scorer {
	return Scorer{UseBreakout: true, EMADistanceMin: defaultEMADistanceMin}
}

// WickScorer scores wick-rejection signals.
func WickScorer() Scorer {
	return Scorer{UseWickRatio: true, WickRatioMin: defaultWickRatioMin, EMADistanceMin: defaultEMADistanceMin}
}

// Score sums the weighted contributions for the signal.
func (s Scorer) Score(sig model.Signal) int {
	score := 0
	if s.quality(sig) {
		score += weightQuality
	}
	if sig.Volume > sig.AvgVolume {
		score += weightVolume
	}
	if sig.EMADistance > s.EMADistanceMin {
		score += weightEMADistance
	}
	if sig.Session.Favorable() {
		score += weightSession
	}
	if score > maxConfidence {
		score = maxConfidence
	}
	return score
}

func (s Scorer) quality(sig model.Signal) bool {
	if s.UseBreakout && sig.Breakout {
		return true
	}
	if s.UseWickRatio && sig.WickRatio > s.WickRatioMin {
		return true
	}
	return false
}
