package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/broker"
	"main/internal/executor"
	"main/internal/journal"
	"main/internal/marketdata"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/risk"
	"main/internal/sched"
	"main/internal/strategy"
	"main/internal/telemetry"
	"main/internal/trailing"
)

// sessionRefresher narrows the session manager to the refresh-only
// surface the market-data cache consumes.
type sessionRefresher struct {
	sessions *broker.SessionManager
}

func (r sessionRefresher) Refresh(ctx context.Context) error {
	_, err := r.sessions.Refresh(ctx)
	return err
}

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := ops.Load(*configPath)
	if err != nil {
		logs.Errorf("load config %s, err: %+v", *configPath, err)
		os.Exit(1)
	}

	if cfg.Profiling.Enabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "trader",
			ServerAddress:   cfg.Profiling.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			logs.Errorf("start profiler, err: %+v", err)
		} else {
			defer profiler.Stop()
		}
	}

	metrics := obs.NewMetrics()
	notifier := notify.NewWebhook(cfg.Notify.WebhookURL, nil)

	ledger, err := account.Open(cfg.Risk.BalancePath, cfg.Risk.InitialBalance)
	if err != nil {
		logs.Errorf("open balance ledger, err: %+v", err)
		os.Exit(1)
	}

	sessions := broker.NewSessionManager(cfg.Broker.BaseURL, broker.Credentials{
		Identifier: cfg.Broker.Identifier,
		Password:   cfg.Broker.Password,
		APIKey:     cfg.Broker.APIKey,
	}, nil)
	// A failed credential exchange at startup is fatal.
	if _, err := sessions.Get(ctx); err != nil {
		logs.Errorf("startup authentication, err: %+v", err)
		notifier.Notify(ctx, notify.KindCrash, map[string]any{"stage": "startup", "error": err.Error()})
		os.Exit(1)
	}
	client := broker.NewClient(cfg.Broker.BaseURL, cfg.Broker.APIKey, sessions, nil)

	epics := make([]string, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		epics = append(epics, m.Epic)
	}

	var fallback marketdata.Fallback
	if cfg.Broker.StreamURL != "" {
		stream := marketdata.NewStream(ctx, cfg.Broker.StreamURL)
		if err := stream.Start(ctx); err != nil {
			logs.Errorf("start price stream, err: %+v", err)
		} else if err := stream.Subscribe(ctx, epics); err != nil {
			logs.Errorf("subscribe price stream, err: %+v", err)
			stream.Close()
		} else {
			stream.Observe(ctx)
			go stream.RunAggregator(ctx)
			defer stream.Close()
			fallback = stream
		}
	}

	cache := marketdata.NewCache(client, sessionRefresher{sessions: sessions}, fallback, metrics)
	monitors := trailing.NewRegistry(cache, client, time.Duration(cfg.Schedule.TrailSeconds)*time.Second, metrics)
	defer monitors.Shutdown()

	var sink journal.Journal
	switch cfg.Journal.Driver {
	case "postgres":
		pg, err := journal.OpenPG(journal.PGOption{ConnString: cfg.Journal.DSN})
		if err != nil {
			logs.Errorf("open postgres journal, err: %+v", err)
			os.Exit(1)
		}
		defer pg.Close()
		sink = pg
	default:
		sink = journal.NewCSV(cfg.Journal.Path)
	}

	exec := executor.New(
		ledger,
		risk.NewSizer(cfg.Risk.RiskFraction),
		cfg.Meta,
		client,
		sink,
		notifier,
		monitors,
		metrics,
	)

	bots := []sched.Strategy{
		strategy.NewBot(strategy.NewPipeline(strategy.PipelineConfig{
			Name:              "momentum",
			Detector:          strategy.NewMomentum(),
			Scorer:            strategy.BreakoutScorer(),
			RequireConfluence: true,
			Location:          cfg.Location,
		}, cache, metrics), exec, epics),
		strategy.NewBot(strategy.NewPipeline(strategy.PipelineConfig{
			Name:     "wick-rejection",
			Detector: strategy.WickRejection{},
			Scorer:   strategy.WickScorer(),
			Location: cfg.Location,
		}, cache, metrics), exec, epics),
		strategy.NewBot(strategy.NewPipeline(strategy.PipelineConfig{
			Name:     "swing-break",
			Detector: strategy.SwingBreak{},
			Scorer:   strategy.BreakoutScorer(),
			Location: cfg.Location,
		}, cache, metrics), exec, epics),
	}

	windows := make([]sched.Window, 0, len(cfg.Schedule.Windows))
	for _, w := range cfg.Schedule.Windows {
		windows = append(windows, sched.Window{StartMinute: w.StartMinute, EndMinute: w.EndMinute})
	}

	var hub *telemetry.Hub
	var broadcaster sched.Broadcaster
	if cfg.Telemetry.Addr != "" {
		hub = telemetry.NewHub()
		go hub.Run(ctx)
		go func() {
			if err := hub.Serve(ctx, cfg.Telemetry.Addr); err != nil {
				logs.Errorf("telemetry server, err: %+v", err)
			}
		}()
		broadcaster = hub
	}

	scheduler := sched.New(sched.Config{
		Strategies:           bots,
		Clock:                sched.NewClock(cfg.Location, windows),
		Controls:             ops.NewControlFiles(cfg.Control.StopPath, cfg.Control.ConfidencePath),
		Notifier:             notifier,
		Metrics:              metrics,
		Hub:                  broadcaster,
		Interval:             time.Duration(cfg.Schedule.CycleSeconds) * time.Second,
		DailySummaryHour:     cfg.Schedule.DailySummaryHour,
		WeeklySummaryWeekday: time.Weekday(cfg.Schedule.WeeklySummaryWeekday),
		WeeklySummaryHour:    cfg.Schedule.WeeklySummaryHour,
	})

	notifier.Notify(ctx, notify.KindBotOnline, map[string]any{
		"markets":    epics,
		"strategies": len(bots),
		"balance":    ledger.Balance(),
	})
	logs.Infof("trader online: %d markets, %d strategies", len(epics), len(bots))

	scheduler.Run(ctx)

	// The run context is gone; give the offline notification its own.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	notifier.Notify(shutdownCtx, notify.KindBotOffline, map[string]any{"balance": ledger.Balance()})
	logs.Info("trader offline")
}
