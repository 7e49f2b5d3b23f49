package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

const jobTimeout = 4 * time.Minute

// Job is one cron entry. Run gets a context bounded by jobTimeout.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

type Scheduler struct {
	c *cron.Cron
}

// New registers jobs on a cron that evaluates schedules in loc and never overlaps a job with itself.
func New(loc *time.Location, jobs ...Job) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	for _, j := range jobs {
		if _, err := c.AddFunc(j.Spec, wrap(j)); err != nil {
			return nil, fmt.Errorf("add job %s (%q): %w", j.Name, j.Spec, err)
		}
		log.Printf("[SCHEDULER] registered %s schedule=%q", j.Name, j.Spec)
	}
	return &Scheduler{c: c}, nil
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop prevents new runs and waits up to ctx for running jobs.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Printf("[SCHEDULER] stop timed out waiting for running jobs")
	}
}

func wrap(j Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		start := time.Now()
		if err := j.Run(ctx); err != nil {
			log.Printf("[SCHEDULER] %s failed: %v", j.Name, err)
			return
		}
		log.Printf("[SCHEDULER] %s done in %s", j.Name, time.Since(start).Round(time.Millisecond))
	}
}

// ===== jobs =====

// TokenReaper is satisfied by notify.Dispatcher.
type TokenReaper interface {
	ReapStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// AttendanceCloser is satisfied by attendance.Service.
type AttendanceCloser interface {
	CloseIncomplete(ctx context.Context) (int64, error)
}

func ReapTokensJob(spec string, r TokenReaper, maxAge time.Duration) Job {
	return Job{
		Name: "token-reaper",
		Spec: spec,
		Run: func(ctx context.Context) error {
			n, err := r.ReapStale(ctx, maxAge)
			if err == nil && n > 0 {
				log.Printf("[SCHEDULER] deactivated %d stale device tokens", n)
			}
			return err
		},
	}
}

func CloseIncompleteJob(spec string, a AttendanceCloser) Job {
	return Job{
		Name: "incomplete-attendance",
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := a.CloseIncomplete(ctx)
			return err
		},
	}
}
