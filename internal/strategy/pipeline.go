package strategy

import (
	"context"
	"time"

	"main/internal/indicator"
	"main/internal/model"
	"main/internal/obs"
)

const defaultMaxCandles = 100

// BarSource is the market-data surface a pipeline reads.
type BarSource interface {
	Bars(ctx context.Context, epic string, tf model.Timeframe, max int) ([]model.Candle, obs.FetchOutcome, error)
	PriorSessionExtremes(ctx context.Context, epic string) (high, low float64, ok bool)
}

// PipelineConfig assembles one strategy's detection and admission chain.
type PipelineConfig struct {
	Name              string
	Detector          Detector
	Scorer            Scorer
	RequireConfluence bool
	Band              Band
	Enrich            indicator.Params
	Location          *time.Location
	MaxCandles        int
}

// Pipeline evaluates one instrument per pass: fetch the three working
// timeframes, detect, then run the fixed-order filter chain. Signals are
// consumed within the pass and never persisted.
type Pipeline struct {
	cfg     PipelineConfig
	data    BarSource
	metrics *obs.Metrics
}

// NewPipeline wires a pipeline to its market-data source.
func NewPipeline(cfg PipelineConfig, data BarSource, metrics *obs.Metrics) *Pipeline {
	if cfg.MaxCandles <= 0 {
		cfg.MaxCandles = defaultMaxCandles
	}
	if cfg.Band == (Band{}) {
		cfg.Band = DefaultBand
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Pipeline{cfg: cfg, data: data, metrics: metrics}
}

// Name identifies the strategy in heartbeats, journals and notifications.
func (p *Pipeline) Name() string {
	return p.cfg.Name
}

// Evaluate runs one full pass for the instrument and returns the accepted
// signals, each carrying its confidence and stop/target pair. An empty
// bar series means "no data, skip this cycle" and yields no signals.
func (p *Pipeline) Evaluate(ctx context.Context, epic string, minConfidence int) ([]model.Signal, error) {
	signalBars, _, err := p.data.Bars(ctx, epic, model.TimeframeQuarter, p.cfg.MaxCandles)
	if err != nil {
		return nil, err
	}
	if len(signalBars) == 0 {
		return nil, nil
	}
	structureBars, _, err := p.data.Bars(ctx, epic, model.TimeframeFiveMinute, p.cfg.MaxCandles)
	if err != nil {
		return nil, err
	}
	hourBars, _, err := p.data.Bars(ctx, epic, model.TimeframeHour, p.cfg.MaxCandles)
	if err != nil {
		return nil, err
	}

	signalSeries := indicator.Enrich(signalBars, p.cfg.Enrich, p.cfg.Location)
	structureSeries := indicator.Enrich(structureBars, p.cfg.Enrich, p.cfg.Location)
	hourSeries := indicator.Enrich(hourBars, p.cfg.Enrich, p.cfg.Location)

	candidates := p.cfg.Detector.Detect(signalSeries)
	p.metrics.IncSignalsDetected(len(candidates))
	if len(candidates) == 0 {
		return nil, nil
	}

	priorHigh, priorLow, priorOK := p.data.PriorSessionExtremes(ctx, epic)
	vwapLevel, vwapOK := indicator.VWAP(hourBars)

	var accepted []model.Signal
	for _, sig := range candidates {
		if !ConfirmStructure(structureSeries, sig) {
			continue
		}
		if !PriorSessionBreakout(sig, priorHigh, priorLow, priorOK) {
			continue
		}
		if !p.cfg.Band.VolatilityOK(sig) {
			continue
		}
		if !VWAPBias(sig, vwapLevel, vwapOK) {
			continue
		}
		if p.cfg.RequireConfluence && !TrendConfluence(sig, hourSeries) {
			continue
		}
		score := p.cfg.Scorer.Score(sig)
		if score < minConfidence {
			continue
		}

		sig.Confidence = score
		sig.Stop, sig.Target = StopTarget(sig)
		p.metrics.IncSignalAccepted()
		accepted = append(accepted, sig)
	}
	return accepted, nil
}
