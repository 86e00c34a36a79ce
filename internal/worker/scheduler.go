// Package worker runs background jobs on cron schedules.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of background work.
type Job interface {
	Name() string
	// Schedule is a cron expression such as "@every 1m". Empty means on-demand only.
	Schedule() string
	Run(ctx context.Context) error
}

// Scheduler owns the cron runner and the registered jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu   sync.Mutex
	ctx  context.Context
	jobs []Job
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	logger = logger.Named("scheduler")
	return &Scheduler{
		// A slow pass is skipped rather than stacked.
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger{logger}), cron.SkipIfStillRunning(cronLogger{logger}))),
		logger: logger,
		ctx:    context.Background(),
	}
}

// Register adds a job and schedules it when it has a schedule.
func (s *Scheduler) Register(job Job) error {
	spec := job.Schedule()
	if spec != "" {
		if _, err := s.cron.AddFunc(spec, func() { _ = s.run(s.context(), job) }); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name(), err)
		}
		s.logger.Info("Scheduled job", zap.String("job", job.Name()), zap.String("spec", spec))
	} else {
		s.logger.Info("Registered on-demand job", zap.String("job", job.Name()))
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	return nil
}

// Start runs scheduled jobs until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", count))

	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunNow executes a registered job synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var found Job
	for _, job := range s.jobs {
		if job.Name() == name {
			found = job
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return fmt.Errorf("job %q not found", name)
	}
	return s.run(ctx, found)
}

func (s *Scheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	if err := job.Run(ctx); err != nil {
		s.logger.Error("Job failed", zap.String("job", job.Name()), zap.Error(err))
		return err
	}
	s.logger.Debug("Job completed", zap.String("job", job.Name()))
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
