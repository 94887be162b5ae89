package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/subcommands"
	"go.uber.org/zap"
)

type runCmd struct {
	config string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "update all pairs once and render their charts" }
func (*runCmd) Usage() string {
	return `run [-config path]:
  Fetch new prices for every configured pair, merge them into the data
  directory and write one HTML chart per pair.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "config file (default $CONFIG_PATH or "+defaultConfigPath+")")
}

func (c *runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath(c.config))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	sum := a.scheduler.RunNow()
	if sum == nil {
		return subcommands.ExitFailure
	}
	_, _, failed := sum.Counts()
	a.logger.Info("all charts generated", zap.String("chart_dir", a.cfg.ChartDir), zap.Int("failed", failed))
	return subcommands.ExitSuccess
}

type serveCmd struct {
	config string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "run batches on a cron schedule" }
func (*serveCmd) Usage() string {
	return `serve [-config path]:
  Run the batch on schedule.cron until interrupted. With Telegram configured,
  reports are sent after each batch and /run, /status, /pairs are answered.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "config file (default $CONFIG_PATH or "+defaultConfigPath+")")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath(c.config))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := a.scheduler.Register(a.cfg.Schedule.Cron); err != nil {
		a.logger.Error("register cron task failed", zap.Error(err))
		return subcommands.ExitFailure
	}
	a.scheduler.Start()
	defer a.scheduler.Stop()

	if a.telegram != nil {
		go a.telegram.StartPolling(ctx, a.scheduler.HandleCommand)
		a.logger.Info("telegram polling started")
	}

	if a.cfg.Schedule.RunOnStart {
		a.logger.Info("run_on_start enabled, executing batch now")
		a.scheduler.RunAsync()
	}

	a.logger.Info("tracker is running, press Ctrl+C to stop")
	<-ctx.Done()
	a.logger.Info("shutdown signal received, stopping")
	return subcommands.ExitSuccess
}
