package tracker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"IndexTracker/internal/calculator"
	"IndexTracker/internal/model"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Renderer turns a joined series into a chart artifact and returns its path.
type Renderer interface {
	Render(cfg model.PairConfig, joined model.JoinedSeries) (string, error)
}

// PairResult is the outcome of one pair in a batch.
type PairResult struct {
	Title     string
	FetchErr  error // phase 1: retrieval or storage failure
	Err       error // phase 2: storage or render failure
	Skipped   bool  // no joined data to chart
	ChartPath string
	Stats     calculator.WindowStats
}

// OK reports whether a chart was produced.
func (r PairResult) OK() bool { return r.Err == nil && !r.Skipped && r.ChartPath != "" }

// Stale reports whether the pair was not refreshed in phase 1, so anything
// charted comes from previously stored data.
func (r PairResult) Stale() bool { return r.FetchErr != nil }

// Summary describes a completed batch.
type Summary struct {
	StartedAt    time.Time
	FinishedAt   time.Time
	WindowMonths int
	Results      []PairResult
}

// Counts returns the number of charts written, skipped and failed.
func (s *Summary) Counts() (ok, skipped, failed int) {
	for _, r := range s.Results {
		switch {
		case r.Err != nil:
			failed++
		case r.Skipped:
			skipped++
		default:
			ok++
		}
	}
	return ok, skipped, failed
}

// Runner fetches all pairs concurrently, then renders them one by one.
type Runner struct {
	processor *Processor
	renderer  Renderer
	workers   int
	logger    *zap.Logger
}

// NewRunner creates a Runner. workers <= 0 uses one worker per CPU.
func NewRunner(processor *Processor, renderer Renderer, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Runner{processor: processor, renderer: renderer, workers: workers, logger: logger}
}

// Run executes one batch. It always completes; failures are isolated per pair
// and reported in the summary.
func (r *Runner) Run(ctx context.Context, pairs []model.PairConfig) *Summary {
	sum := &Summary{
		StartedAt:    time.Now(),
		WindowMonths: r.processor.WindowMonths(),
		Results:      make([]PairResult, len(pairs)),
	}
	r.logger.Info("updating data", zap.Int("pairs", len(pairs)), zap.Int("workers", r.workers))

	// Phase 1: fetch and merge on a bounded pool.
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, cfg := range pairs {
		sum.Results[i].Title = cfg.Title
		g.Go(func() error {
			sum.Results[i].FetchErr = r.refresh(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait()

	// Phase 2: join, window and render sequentially.
	for i, cfg := range pairs {
		r.render(ctx, cfg, &sum.Results[i])
	}

	sum.FinishedAt = time.Now()
	ok, skipped, failed := sum.Counts()
	r.logger.Info("batch finished",
		zap.Int("charts", ok),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
		zap.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)))
	return sum
}

func (r *Runner) refresh(ctx context.Context, cfg model.PairConfig) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		var re *RetrievalError
		switch {
		case errors.As(err, &re):
			r.logger.Warn("data update incomplete, using stored data", zap.String("pair", cfg.Title), zap.Error(err))
		case err != nil:
			r.logger.Error("data update failed", zap.String("pair", cfg.Title), zap.Error(err))
		}
	}()
	r.logger.Info("updating pair", zap.String("pair", cfg.Title))
	if err := r.processor.Refresh(ctx, cfg); err != nil {
		return err
	}
	r.logger.Info("pair updated", zap.String("pair", cfg.Title))
	return nil
}

func (r *Runner) render(ctx context.Context, cfg model.PairConfig, res *PairResult) {
	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
		}
		if res.Err != nil {
			r.logger.Error("chart generation failed", zap.String("pair", cfg.Title), zap.Error(res.Err))
		}
	}()

	joined, err := r.processor.Process(ctx, cfg)
	if err != nil {
		res.Err = err
		return
	}
	if len(joined) == 0 {
		res.Skipped = true
		r.logger.Warn("data missing, skipping chart", zap.String("pair", cfg.Title))
		return
	}
	if st, err := calculator.Summarize(joined); err == nil {
		res.Stats = st
	}
	path, err := r.renderer.Render(cfg, joined)
	if err != nil {
		res.Err = err
		return
	}
	res.ChartPath = path
	r.logger.Info("chart generated", zap.String("pair", cfg.Title), zap.String("path", path), zap.Int("rows", len(joined)))
}
