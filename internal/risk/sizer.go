// Package risk converts an account balance and a signal's dispersion into
// a concrete, instrument-legal position size.
package risk

import (
	"math"

	"github.com/yanun0323/errors"

	"main/internal/exception"
)

// sizeEpsilon absorbs float rounding when flooring to the minimum unit,
// so an exact multiple never rounds down a step.
const sizeEpsilon = 1e-9

// InstrumentMeta is the per-market sizing metadata.
type InstrumentMeta struct {
	MinSize    float64 `json:"minSize"`
	PointValue float64 `json:"pointValue"`
}

// Sizer computes position sizes from a fixed per-trade risk fraction.
type Sizer struct {
	RiskFraction float64
}

// NewSizer creates a sizer; fraction <= 0 falls back to 1%.
func NewSizer(fraction float64) Sizer {
	if fraction <= 0 {
		fraction = 0.01
	}
	return Sizer{RiskFraction: fraction}
}

// Size returns the order size for the given balance and dispersion,
// floored to the instrument's minimum tradeable unit. A result below the
// minimum unit fails with exception.ErrSizeTooSmall; the caller skips the
// trade and must not retry.
func (s Sizer) Size(balance, dispersion float64, meta InstrumentMeta) (float64, error) {
	if dispersion <= 0 || meta.PointValue <= 0 || meta.MinSize <= 0 {
		return 0, errors.Errorf("invalid sizing inputs: dispersion=%.4f pointValue=%.4f minSize=%.4f",
			dispersion, meta.PointValue, meta.MinSize)
	}

	riskAmount := balance * s.RiskFraction
	raw := riskAmount / (dispersion * meta.PointValue)
	size := math.Floor(raw/meta.MinSize+sizeEpsilon) * meta.MinSize

	if size < meta.MinSize {
		return 0, errors.Wrapf(exception.ErrSizeTooSmall, "size: %.4f, min: %.4f", size, meta.MinSize)
	}
	return size, nil
}
