package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/exception"
)

func TestSizerSize(t *testing.T) {
	meta := InstrumentMeta{MinSize: 0.1, PointValue: 1}
	sizer := NewSizer(0.01)

	t.Run("exact multiple is kept", func(t *testing.T) {
		// 500 * 1% / (10 * 1) = 0.5
		size, err := sizer.Size(500, 10, meta)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, size, 1e-9)
	})

	t.Run("raw size floors to the minimum unit", func(t *testing.T) {
		// raw 0.57 floors to 0.5
		size, err := sizer.Size(570, 10, meta)
		require.NoError(t, err)
		assert.InDelta(t, 0.5, size, 1e-9)
	})

	t.Run("below minimum fails", func(t *testing.T) {
		_, err := sizer.Size(500, 10, InstrumentMeta{MinSize: 0.1, PointValue: 100})
		require.Error(t, err)
		assert.True(t, errors.Is(err, exception.ErrSizeTooSmall))
	})

	t.Run("invalid inputs fail", func(t *testing.T) {
		_, err := sizer.Size(500, 0, meta)
		assert.Error(t, err)
		_, err = sizer.Size(500, 10, InstrumentMeta{MinSize: 0, PointValue: 1})
		assert.Error(t, err)
	})
}

func TestNewSizerDefaultFraction(t *testing.T) {
	assert.InDelta(t, 0.01, NewSizer(0).RiskFraction, 1e-9)
	assert.InDelta(t, 0.02, NewSizer(0.02).RiskFraction, 1e-9)
}
