package main

import (
	"context"
	"fmt"
	"os"

	"IndexTracker/internal/chart"
	"IndexTracker/internal/collector"
	"IndexTracker/internal/config"
	"IndexTracker/internal/logger"
	"IndexTracker/internal/notifier"
	"IndexTracker/internal/recorder"
	"IndexTracker/internal/scheduler"
	"IndexTracker/internal/store"
	"IndexTracker/internal/tracker"

	"go.uber.org/zap"
)

const defaultConfigPath = "configs/config.yaml"

// app wires the components shared by all subcommands.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	scheduler *scheduler.Scheduler
	telegram  *notifier.TelegramNotifier
	recorder  recorder.Recorder
}

func configPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		return v
	}
	return defaultConfigPath
}

func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.DataDir, log.Named("store"))
	if err != nil {
		return nil, err
	}
	renderer, err := chart.NewRenderer(cfg.ChartDir, cfg.WindowMonths, cfg.Chart.AssetsHost, log.Named("chart"))
	if err != nil {
		return nil, err
	}

	col := collector.NewCollector(
		cfg.DataSource.Provider,
		collector.NewEastmoneyFetcher(cfg.DataSource.Proxy, cfg.DataSource.Timeout),
		collector.NewYahooFetcher(cfg.DataSource.Proxy, cfg.DataSource.Timeout, cfg.DataSource.YahooRange),
		log.Named("collector"),
	)
	processor := tracker.NewProcessor(tracker.NewUpdater(st, log.Named("updater")), col, cfg.WindowMonths, log.Named("processor"))
	runner := tracker.NewRunner(processor, renderer, cfg.Workers, log.Named("runner"))

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log.Named("recorder"))
		if err != nil {
			log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
		}
	}

	a := &app{cfg: cfg, logger: log, recorder: rec}
	var n scheduler.Notifier
	if cfg.TelegramEnabled() {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.DataSource.Proxy, log.Named("telegram"))
		n = a.telegram
	}
	a.scheduler = scheduler.NewScheduler(ctx, runner, cfg.Pairs, n, rec, log.Named("scheduler"))

	log.Info("tracker configured",
		zap.Int("pairs", len(cfg.Pairs)),
		zap.String("data_dir", cfg.DataDir),
		zap.String("chart_dir", cfg.ChartDir),
		zap.String("provider", cfg.DataSource.Provider))
	return a, nil
}

func (a *app) close() {
	if err := a.recorder.Close(); err != nil {
		a.logger.Error("close recorder failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
