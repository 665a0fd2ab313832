// Package scheduler runs background cache maintenance jobs on simple
// schedule expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tsijukebox/jukebox-backend/internal/errorreporting"
	"github.com/tsijukebox/jukebox-backend/internal/logger"
	"github.com/tsijukebox/jukebox-backend/internal/metrics"
)

// Job is a named task run on a schedule.
type Job struct {
	Name     string
	Schedule string
	// RunOnStart runs the job once before waiting for its first slot.
	RunOnStart bool
	Run        func(ctx context.Context) error
}

// Scheduler runs each job in its own loop until stopped.
type Scheduler struct {
	jobs []Job
	now  func() time.Time
	log  *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New validates every job's schedule. Jobs with an empty schedule are skipped.
func New(jobs ...Job) (*Scheduler, error) {
	s := &Scheduler{now: time.Now, log: logger.WithComponent("scheduler"), stop: make(chan struct{})}
	for _, j := range jobs {
		if j.Schedule == "" {
			continue
		}
		if j.Run == nil {
			return nil, fmt.Errorf("job %q has no run function", j.Name)
		}
		if err := Validate(j.Schedule); err != nil {
			return nil, fmt.Errorf("job %q: %w", j.Name, err)
		}
		s.jobs = append(s.jobs, j)
	}
	return s, nil
}

// Len returns the number of scheduled jobs.
func (s *Scheduler) Len() int { return len(s.jobs) }

// Start launches every job loop and returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
	s.log.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop ends every loop and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	defer s.wg.Done()

	if j.RunOnStart {
		s.execute(ctx, j)
	}
	for {
		next, err := Next(j.Schedule, s.now())
		if err != nil {
			s.log.Error("failed to compute next run", "job", j.Name, "error", err)
			return
		}
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stop:
			timer.Stop()
			return
		case <-timer.C:
			s.execute(ctx, j)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, j Job) {
	start := time.Now()
	err := j.Run(ctx)
	metrics.ScheduledJobDuration.WithLabelValues(j.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ScheduledJobRuns.WithLabelValues(j.Name, "error").Inc()
		s.log.Warn("scheduled job failed", "job", j.Name, "error", err)
		errorreporting.CaptureError(fmt.Errorf("job %s: %w", j.Name, err))
		return
	}
	metrics.ScheduledJobRuns.WithLabelValues(j.Name, "ok").Inc()
	s.log.Debug("scheduled job finished", "job", j.Name, "duration", time.Since(start))
}
