package scheduler

import (
	"context"
	"fmt"
	"sync"

	"IndexTracker/internal/model"
	"IndexTracker/internal/notifier"
	"IndexTracker/internal/recorder"
	"IndexTracker/internal/tracker"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BatchRunner executes one fetch-and-render batch.
type BatchRunner interface {
	Run(ctx context.Context, pairs []model.PairConfig) *tracker.Summary
}

// Notifier delivers batch reports. It may be nil.
type Notifier interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler runs batches on a cron schedule or on demand.
type Scheduler struct {
	Cron     *cron.Cron
	Runner   BatchRunner
	Pairs    []model.PairConfig
	Notifier Notifier
	Recorder recorder.Recorder
	Ctx      context.Context
	logger   *zap.Logger

	running sync.Mutex // held for the duration of a batch
	async   sync.WaitGroup
	mu      sync.Mutex
	last    *tracker.Summary
	stopped bool
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, runner BatchRunner, pairs []model.PairConfig, n Notifier, rec recorder.Recorder, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Runner:   runner,
		Pairs:    pairs,
		Notifier: n,
		Recorder: rec,
		Ctx:      ctx,
		logger:   logger,
	}
}

// Register adds the batch job under a six-field cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.batchTask); err != nil {
		return fmt.Errorf("register batch task: %w", err)
	}
	s.logger.Info("batch task registered", zap.String("cron", spec))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running batches, scheduled or
// started through RunAsync, to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.async.Wait()
	s.logger.Info("scheduler stopped")
}

// RunAsync starts a batch in the background. Stop waits for it; after Stop
// it does nothing.
func (s *Scheduler) RunAsync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.logger.Warn("scheduler stopped, batch not started")
		return
	}
	s.async.Add(1)
	go func() {
		defer s.async.Done()
		s.RunNow()
	}()
}

// RunNow executes a batch immediately. It returns nil when a batch is
// already in progress.
func (s *Scheduler) RunNow() *tracker.Summary {
	if !s.running.TryLock() {
		s.logger.Warn("batch already running, skipping")
		return nil
	}
	defer s.running.Unlock()

	sum := s.Runner.Run(s.Ctx, s.Pairs)
	s.mu.Lock()
	s.last = sum
	s.mu.Unlock()

	if err := s.Recorder.RecordBatch(sum); err != nil {
		s.logger.Error("record batch failed", zap.Error(err))
	}
	s.trySend(notifier.FormatBatchReport(sum))
	return sum
}

// Last returns the most recent batch summary, or nil.
func (s *Scheduler) Last() *tracker.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Scheduler) batchTask() {
	s.logger.Info("running scheduled batch")
	s.RunNow()
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch command {
	case "/run":
		s.RunAsync()
		return "Batch started, a report follows when it completes."
	case "/status":
		last := s.Last()
		if last == nil {
			return "No batch has completed yet."
		}
		return notifier.FormatBatchReport(last)
	case "/pairs":
		text := fmt.Sprintf("%d pairs tracked:\n", len(s.Pairs))
		for _, p := range s.Pairs {
			text += fmt.Sprintf("• %s: %s / %s\n", p.Title, p.IndexSymbol, p.ETFSymbol)
		}
		return text
	default:
		return "Available commands:\n• /run\n• /status\n• /pairs"
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error("send notification failed", zap.Error(err))
	}
}
