package ops

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minimalConfig() FileConfig {
	return FileConfig{
		Broker: BrokerConfig{BaseURL: "https://demo-api.example.com"},
	}
}

func TestResolveAppliesDefaults(t *testing.T) {
	loaded, err := Resolve(minimalConfig())
	require.NoError(t, err)

	assert.InDelta(t, 0.01, loaded.Risk.RiskFraction, 1e-9)
	assert.InDelta(t, 500, loaded.Risk.InitialBalance, 1e-9)
	assert.Equal(t, "balance.json", loaded.Risk.BalancePath)
	assert.Equal(t, "Europe/London", loaded.Schedule.Timezone)
	assert.Equal(t, 60, loaded.Schedule.CycleSeconds)
	assert.Equal(t, 30, loaded.Schedule.TrailSeconds)
	assert.Equal(t, 20, loaded.Schedule.DailySummaryHour)
	assert.Equal(t, int(time.Friday), loaded.Schedule.WeeklySummaryWeekday)
	assert.Equal(t, 21, loaded.Schedule.WeeklySummaryHour)
	assert.Equal(t, "csv", loaded.Journal.Driver)
	assert.Equal(t, "stop_bots.json", loaded.Control.StopPath)
	assert.Equal(t, "confidence.json", loaded.Control.ConfidencePath)
	require.NotNil(t, loaded.Location)
	assert.Equal(t, "Europe/London", loaded.Location.String())

	// morning and afternoon windows
	require.Len(t, loaded.Schedule.Windows, 2)
	assert.Equal(t, 510, loaded.Schedule.Windows[0].StartMinute)
	assert.Equal(t, 660, loaded.Schedule.Windows[0].EndMinute)
	assert.Equal(t, 870, loaded.Schedule.Windows[1].StartMinute)
	assert.Equal(t, 1020, loaded.Schedule.Windows[1].EndMinute)

	// default instrument set carries sizing metadata
	require.Len(t, loaded.Markets, 4)
	meta, ok := loaded.Meta["CS.D.NAS100.MINI.IP"]
	require.True(t, ok)
	assert.InDelta(t, 0.1, meta.MinSize, 1e-9)
}

func TestResolveValidation(t *testing.T) {
	t.Run("missing base url", func(t *testing.T) {
		_, err := Resolve(FileConfig{})
		assert.Error(t, err)
	})

	t.Run("invalid market metadata", func(t *testing.T) {
		cfg := minimalConfig()
		cfg.Markets = []MarketConfig{{Epic: "EPIC", MinSize: 0, PointValue: 1}}
		_, err := Resolve(cfg)
		assert.Error(t, err)
	})

	t.Run("invalid window", func(t *testing.T) {
		cfg := minimalConfig()
		cfg.Schedule.Windows = []WindowConfig{{StartMinute: 700, EndMinute: 600}}
		_, err := Resolve(cfg)
		assert.Error(t, err)
	})

	t.Run("unknown journal driver", func(t *testing.T) {
		cfg := minimalConfig()
		cfg.Journal.Driver = "sqlite"
		_, err := Resolve(cfg)
		assert.Error(t, err)
	})

	t.Run("unknown timezone", func(t *testing.T) {
		cfg := minimalConfig()
		cfg.Schedule.Timezone = "Mars/Olympus"
		_, err := Resolve(cfg)
		assert.Error(t, err)
	})
}
