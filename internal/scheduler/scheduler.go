package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/sentryops/bypassguard/internal/logger"
)

// Job is a named recurring task
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs each registered job on its own fixed-interval ticker. A job
// goroutine processes ticks sequentially, so at most one run of a given job
// is in flight at any time; ticks arriving during a long run are dropped.
type Scheduler struct {
	jobs   []Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger logger.Logger
}

// New creates an empty scheduler
func New() *Scheduler {
	return &Scheduler{
		logger: logger.New("scheduler"),
	}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches one goroutine per job
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.runJob(ctx, job)
	}

	s.logger.Infow("scheduler started", "jobs", len(s.jobs))
}

// Stop cancels all jobs and waits for in-flight runs to finish
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, job)
		}
	}
}

// execute runs one job cycle with panic isolation
func (s *Scheduler) execute(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("job panicked", "job", job.Name, "panic", r)
			logger.SweepRunTotal.WithLabelValues(job.Name, "panic").Inc()
		}
	}()

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Errorw("job run failed", "job", job.Name, "error", err)
		logger.SweepRunTotal.WithLabelValues(job.Name, "error").Inc()
		return
	}

	s.logger.Debugw("job run completed", "job", job.Name, "duration_ms", time.Since(start).Milliseconds())
	logger.SweepRunTotal.WithLabelValues(job.Name, "ok").Inc()
}
