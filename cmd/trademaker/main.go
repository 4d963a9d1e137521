package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeromicro/go-zero/core/logx"

	"trademaker/internal/cli"
	"trademaker/internal/config"
	"trademaker/internal/consumer"
	"trademaker/internal/metrics"
	"trademaker/internal/persistence/history"
	"trademaker/pkg/backtest"
	"trademaker/pkg/detector"
	"trademaker/pkg/exchange"
	"trademaker/pkg/journal"
	"trademaker/pkg/processor"

	// Import for side-effects: registers the simulator venue type.
	_ "trademaker/pkg/exchange/sim"
)

var replayFile = flag.String("replay", "", "replay a JSON-lines tick file instead of consuming the broker")

func main() {
	flag.Parse()

	cfg := config.MustLoad()
	if err := cli.SetupLogger(cfg); err != nil {
		logx.Errorf("main: %v", err)
		os.Exit(1)
	}
	cli.LogConfigSummary(cfg)

	venuesCfg := cfg.Venues.Value
	if venuesCfg == nil {
		venuesCfg = config.MustLoadVenues()
	}
	venues, err := venuesCfg.BuildVenues()
	if err != nil {
		logx.Errorf("main: build venues: %v", err)
		os.Exit(1)
	}

	det := detector.New(detector.Config{
		ThresholdPct:          cfg.Trading.ThresholdPct,
		AlignmentThresholdPct: cfg.Trading.AlignmentThresholdPct,
		HistorySize:           cfg.Trading.HistorySize,
	})

	opts := []processor.Option{
		processor.WithObserver(metrics.Collector{}),
		processor.WithJournal(journal.NewWriter(cfg.JournalDir)),
	}
	if recorder := history.NewService(cfg.PostgresDSN); recorder != nil {
		opts = append(opts, processor.WithTradeRecorder(recorder))
	}
	proc := processor.New(venues, det, processor.Config{
		BaseTradeAmount: cfg.Trading.BaseTradeAmount,
	}, opts...)

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var code int
	if *replayFile != "" {
		code = runReplay(ctx, *replayFile, proc, venues)
	} else {
		code = runConsumer(ctx, cfg, proc)
	}
	stop()
	logx.Close()
	os.Exit(code)
}

func runConsumer(ctx context.Context, cfg *config.Config, proc *processor.Processor) int {
	cons := consumer.New(consumer.Conf{
		URL:         cfg.Rabbit.URL,
		Exchange:    cfg.Rabbit.Exchange,
		QueueName:   cfg.Rabbit.QueueName,
		RoutingKey:  cfg.Rabbit.RoutingKey,
		QueueLength: cfg.Rabbit.QueueLength,
	})
	if err := cons.Connect(); err != nil {
		logx.Errorf("main: %v", err)
		return 1
	}
	defer cons.Close()

	err := cons.Consume(ctx, proc.ProcessMessage)
	if err != nil && !errors.Is(err, context.Canceled) {
		logx.Errorf("main: consume: %v", err)
		return 1
	}

	logx.Info("main: shutting down, closing open positions")
	if err := proc.CloseAllPositions(context.Background()); err != nil {
		logx.Errorf("main: close all positions: %v", err)
		if errors.Is(err, exchange.ErrSnapshotIO) {
			return 1
		}
	}
	return 0
}

func runReplay(ctx context.Context, path string, proc *processor.Processor, venues map[string]exchange.Venue) int {
	ticks, err := backtest.LoadTickFile(path)
	if err != nil {
		logx.Errorf("main: %v", err)
		return 1
	}
	engine := &backtest.Engine{
		Feeder:        backtest.NewTickFeeder(ticks),
		Processor:     proc,
		Venues:        venues,
		CloseOnFinish: true,
	}
	result, err := engine.Run(ctx)
	if err != nil {
		logx.Errorf("main: replay: %v", err)
		return 1
	}
	logx.Infof("main: replay finished ticks=%d open_pairs=%d", result.Ticks, result.OpenPairs)
	for name, summary := range result.Venues {
		logx.Infof("main: venue %s orders=%d realized_pnl=%v balances=%v",
			name, summary.Orders, summary.Realized, summary.Balances)
	}
	return 0
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	logx.Infof("main: metrics listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logx.Errorf("main: metrics server: %v", err)
	}
}
