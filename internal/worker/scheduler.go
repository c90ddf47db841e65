package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"fincast/internal/config"
	"fincast/internal/log"
	"fincast/internal/services"
)

// BatchRunner runs one batch recompute.
type BatchRunner interface {
	Run(ctx context.Context, asOf time.Time) (services.BatchSummary, error)
}

// Scheduler runs the batch recompute on a cron schedule. Runs never overlap:
// a tick that fires while the previous run is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  BatchRunner
	timeout time.Duration
	now     func() time.Time
	logger  *log.Logger

	mu      sync.Mutex
	ctx     context.Context
	running bool
	stopped bool
}

// NewScheduler validates schedule (six fields, seconds first, or a
// descriptor such as @daily) and registers the batch job.
func NewScheduler(schedule string, runner BatchRunner, timeout time.Duration, logger *log.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithParser(config.ScheduleParser)),
		runner:  runner,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.WithComponent(log.ComponentBatch),
		ctx:     context.Background(),
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid batch schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing ticks. Runs are bound to ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.InfoContext(ctx, "Batch scheduler started",
		"next_run", s.Next().Format(time.RFC3339))
}

// Stop stops the schedule and waits for a running batch to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("Batch scheduler stopped")
}

// Next is the time of the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(s.now())
}

// RunNow runs the batch immediately in the calling goroutine. It returns
// false when a run is already in progress.
func (s *Scheduler) RunNow(ctx context.Context) (services.BatchSummary, bool, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return services.BatchSummary{}, false, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := s.runner.Run(ctx, s.now())
	return summary, true, err
}

func (s *Scheduler) tick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in batch run", "panic", fmt.Sprintf("%v", r))
		}
	}()

	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	summary, ran, err := s.RunNow(ctx)
	switch {
	case !ran:
		s.logger.WarnContext(ctx, "Previous batch still running, skipping tick")
	case err != nil:
		s.logger.ErrorContext(ctx, "Scheduled batch failed", log.FieldError, err)
	default:
		s.logger.InfoContext(ctx, "Scheduled batch completed",
			log.FieldSucceeded, summary.Succeeded,
			log.FieldFailed, summary.Failed,
			log.FieldDuration, summary.Duration.Milliseconds())
	}
}
