package strategy

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/indicator"
	"main/internal/model"
)

func enrichedRamp(n int, step float64) []indicator.Enriched {
	out := make([]indicator.Enriched, n)
	for i := range out {
		close := 100 + float64(i)*step
		out[i] = indicator.Enriched{
			Candle: model.Candle{
				Open:  close - step/2,
				High:  close + 1,
				Low:   close - 1,
				Close: close,
			},
			Dispersion: 10,
			AvgVolume:  100,
			Session:    model.SessionUS,
		}
	}
	return out
}

func TestMomentumDetect(t *testing.T) {
	t.Run("too few candles", func(t *testing.T) {
		assert.Nil(t, NewMomentum().Detect(enrichedRamp(19, 5)))
	})

	t.Run("rising series signals buy with breakout", func(t *testing.T) {
		out := NewMomentum().Detect(enrichedRamp(25, 5))
		require.Len(t, out, 1)
		assert.Equal(t, model.DirectionBuy, out[0].Direction)
		assert.True(t, out[0].Breakout)
		assert.Equal(t, 220.0, out[0].Price)
	})

	t.Run("falling series signals sell", func(t *testing.T) {
		out := NewMomentum().Detect(enrichedRamp(25, -5))
		require.Len(t, out, 1)
		assert.Equal(t, model.DirectionSell, out[0].Direction)
	})

	t.Run("flat series stays silent", func(t *testing.T) {
		assert.Empty(t, NewMomentum().Detect(enrichedRamp(25, 0)))
	})
}

func TestWickRejectionDetect(t *testing.T) {
	wickCandle := func(open, close, high, low, disp float64) indicator.Enriched {
		return indicator.Enriched{
			Candle:     model.Candle{Open: open, High: high, Low: low, Close: close},
			Dispersion: disp,
		}
	}

	t.Run("long lower wick with tight body signals buy", func(t *testing.T) {
		out := WickRejection{}.Detect([]indicator.Enriched{
			wickCandle(100, 100.5, 101, 90, 5),
		})
		require.Len(t, out, 1)
		assert.Equal(t, model.DirectionBuy, out[0].Direction)
		assert.InDelta(t, 21, out[0].WickRatio, 1e-9)
	})

	t.Run("body too wide for dispersion rejects", func(t *testing.T) {
		// wick 10 clears 1.5x dispersion but body 2 exceeds 0.3x
		out := WickRejection{}.Detect([]indicator.Enriched{
			wickCandle(100, 102, 103, 90, 5),
		})
		assert.Empty(t, out)
	})

	t.Run("short wick rejects", func(t *testing.T) {
		out := WickRejection{}.Detect([]indicator.Enriched{
			wickCandle(100, 100.5, 101, 95, 5),
		})
		assert.Empty(t, out)
	})

	t.Run("zero body yields unbounded ratio", func(t *testing.T) {
		out := WickRejection{}.Detect([]indicator.Enriched{
			wickCandle(100, 100, 101, 90, 5),
		})
		require.Len(t, out, 1)
		assert.True(t, math.IsInf(out[0].WickRatio, 1))
	})

	t.Run("bearish upper wick signals sell", func(t *testing.T) {
		out := WickRejection{}.Detect([]indicator.Enriched{
			wickCandle(100.5, 100, 110, 99, 5),
		})
		require.Len(t, out, 1)
		assert.Equal(t, model.DirectionSell, out[0].Direction)
	})
}

func TestSwingBreakDetect(t *testing.T) {
	bar := func(high, low, close float64) indicator.Enriched {
		return indicator.Enriched{
			Candle:     model.Candle{Open: close, High: high, Low: low, Close: close},
			Dispersion: 10,
		}
	}

	t.Run("break above rising highs", func(t *testing.T) {
		out := SwingBreak{}.Detect([]indicator.Enriched{
			bar(10, 5, 8), bar(11, 6, 9), bar(12, 7, 10), bar(14, 8, 13),
		})
		require.Len(t, out, 1)
		assert.Equal(t, model.DirectionBuy, out[0].Direction)
		assert.True(t, out[0].Breakout)
	})

	t.Run("break below falling lows", func(t *testing.T) {
		out := SwingBreak{}.Detect([]indicator.Enriched{
			bar(20, 12, 15), bar(19, 11, 14), bar(18, 10, 13), bar(17, 8, 9),
		})
		require.Len(t, out, 1)
		assert.Equal(t, model.DirectionSell, out[0].Direction)
	})

	t.Run("no pattern", func(t *testing.T) {
		out := SwingBreak{}.Detect([]indicator.Enriched{
			bar(10, 5, 8), bar(9, 6, 7), bar(12, 7, 10), bar(11, 8, 9),
		})
		assert.Empty(t, out)
	})
}
