// Package ops loads the JSON runtime configuration and the operator
// control surface.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/risk"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Broker    BrokerConfig    `json:"broker"`
	Markets   []MarketConfig  `json:"markets"`
	Risk      RiskConfig      `json:"risk"`
	Schedule  ScheduleConfig  `json:"schedule"`
	Control   ControlConfig   `json:"control"`
	Journal   JournalConfig   `json:"journal"`
	Notify    NotifyConfig    `json:"notify"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Profiling ProfilingConfig `json:"profiling"`
}

// BrokerConfig holds the REST and streaming endpoints plus credentials.
type BrokerConfig struct {
	BaseURL    string `json:"baseUrl"`
	StreamURL  string `json:"streamUrl"`
	APIKey     string `json:"apiKey"`
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// MarketConfig describes one tradeable instrument.
type MarketConfig struct {
	Epic       string  `json:"epic"`
	MinSize    float64 `json:"minSize"`
	PointValue float64 `json:"pointValue"`
}

// RiskConfig holds sizing parameters and the balance file.
type RiskConfig struct {
	RiskFraction   float64 `json:"riskFraction"`
	InitialBalance float64 `json:"initialBalance"`
	BalancePath    string  `json:"balancePath"`
}

// WindowConfig is one trading window in minutes of day, inclusive.
type WindowConfig struct {
	StartMinute int `json:"startMinute"`
	EndMinute   int `json:"endMinute"`
}

// ScheduleConfig drives the scheduler loop and summary windows.
type ScheduleConfig struct {
	Timezone             string         `json:"timezone"`
	Windows              []WindowConfig `json:"windows"`
	CycleSeconds         int            `json:"cycleSeconds"`
	TrailSeconds         int            `json:"trailSeconds"`
	DailySummaryHour     int            `json:"dailySummaryHour"`
	WeeklySummaryWeekday int            `json:"weeklySummaryWeekday"`
	WeeklySummaryHour    int            `json:"weeklySummaryHour"`
}

// ControlConfig points at the operator-writable flag files.
type ControlConfig struct {
	StopPath       string `json:"stopPath"`
	ConfidencePath string `json:"confidencePath"`
}

// JournalConfig selects the trade journal sink.
type JournalConfig struct {
	Driver string `json:"driver"` // "csv" or "postgres"
	Path   string `json:"path"`
	DSN    string `json:"dsn"`
}

// NotifyConfig holds the notification webhook.
type NotifyConfig struct {
	WebhookURL string `json:"webhookUrl"`
}

// TelemetryConfig enables the dashboard websocket hub.
type TelemetryConfig struct {
	Addr string `json:"addr"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enabled       bool   `json:"enabled"`
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Broker    BrokerConfig
	Markets   []MarketConfig
	Meta      map[string]risk.InstrumentMeta
	Risk      RiskConfig
	Schedule  ScheduleConfig
	Control   ControlConfig
	Journal   JournalConfig
	Notify    NotifyConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
	Location  *time.Location
}

// Load reads a JSON config file, applies defaults and validates it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve applies defaults and validates a parsed config.
func Resolve(cfg FileConfig) (Loaded, error) {
	applyDefaults(&cfg)

	if cfg.Broker.BaseURL == "" {
		return Loaded{}, fmt.Errorf("broker baseUrl is empty")
	}
	if len(cfg.Markets) == 0 {
		return Loaded{}, fmt.Errorf("no markets configured")
	}

	meta := make(map[string]risk.InstrumentMeta, len(cfg.Markets))
	for _, m := range cfg.Markets {
		if m.Epic == "" {
			return Loaded{}, fmt.Errorf("market epic is empty")
		}
		if m.MinSize <= 0 || m.PointValue <= 0 {
			return Loaded{}, fmt.Errorf("invalid metadata for %s: minSize=%.4f pointValue=%.4f", m.Epic, m.MinSize, m.PointValue)
		}
		meta[m.Epic] = risk.InstrumentMeta{MinSize: m.MinSize, PointValue: m.PointValue}
	}

	for _, w := range cfg.Schedule.Windows {
		if w.StartMinute < 0 || w.EndMinute >= 24*60 || w.StartMinute > w.EndMinute {
			return Loaded{}, fmt.Errorf("invalid trading window: %d-%d", w.StartMinute, w.EndMinute)
		}
	}

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return Loaded{}, fmt.Errorf("load timezone %s: %w", cfg.Schedule.Timezone, err)
	}

	switch cfg.Journal.Driver {
	case "csv", "postgres":
	default:
		return Loaded{}, fmt.Errorf("unknown journal driver: %s", cfg.Journal.Driver)
	}

	return Loaded{
		Broker:    cfg.Broker,
		Markets:   cfg.Markets,
		Meta:      meta,
		Risk:      cfg.Risk,
		Schedule:  cfg.Schedule,
		Control:   cfg.Control,
		Journal:   cfg.Journal,
		Notify:    cfg.Notify,
		Telemetry: cfg.Telemetry,
		Profiling: cfg.Profiling,
		Location:  loc,
	}, nil
}

func applyDefaults(cfg *FileConfig) {
	if len(cfg.Markets) == 0 {
		cfg.Markets = defaultMarkets()
	}
	if cfg.Risk.RiskFraction == 0 {
		cfg.Risk.RiskFraction = 0.01
	}
	if cfg.Risk.InitialBalance == 0 {
		cfg.Risk.InitialBalance = 500
	}
	if cfg.Risk.BalancePath == "" {
		cfg.Risk.BalancePath = "balance.json"
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = "Europe/London"
	}
	if len(cfg.Schedule.Windows) == 0 {
		cfg.Schedule.Windows = []WindowConfig{
			{StartMinute: 510, EndMinute: 660},
			{StartMinute: 870, EndMinute: 1020},
		}
	}
	if cfg.Schedule.CycleSeconds == 0 {
		cfg.Schedule.CycleSeconds = 60
	}
	if cfg.Schedule.TrailSeconds == 0 {
		cfg.Schedule.TrailSeconds = 30
	}
	if cfg.Schedule.DailySummaryHour == 0 {
		cfg.Schedule.DailySummaryHour = 20
	}
	if cfg.Schedule.WeeklySummaryWeekday == 0 {
		cfg.Schedule.WeeklySummaryWeekday = int(time.Friday)
	}
	if cfg.Schedule.WeeklySummaryHour == 0 {
		cfg.Schedule.WeeklySummaryHour = 21
	}
	if cfg.Control.StopPath == "" {
		cfg.Control.StopPath = "stop_bots.json"
	}
	if cfg.Control.ConfidencePath == "" {
		cfg.Control.ConfidencePath = "confidence.json"
	}
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = "csv"
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = "trade_journal.csv"
	}
}

func defaultMarkets() []MarketConfig {
	return []MarketConfig{
		{Epic: "CS.D.NAS100.MINI.IP", MinSize: 0.1, PointValue: 1.0},
		{Epic: "CS.D.SPX.MINI.IP", MinSize: 0.1, PointValue: 0.5},
		{Epic: "CS.D.DAX.MINI.IP", MinSize: 0.1, PointValue: 1.0},
		{Epic: "CS.D.FTSE.MINI.IP", MinSize: 0.1, PointValue: 1.0},
	}
}
