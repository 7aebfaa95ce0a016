package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs recurring maintenance jobs: corpus rescans and query
// log retention. Jobs are registered by tag and can be removed again.
type Scheduler struct {
	scheduler *gocron.Scheduler
	cancel    context.CancelFunc
	ctx       context.Context
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()

	return &Scheduler{
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop halts all jobs and cancels the scheduler context.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

// Context is canceled when the scheduler stops. Jobs should derive
// their own timeouts from it.
func (s *Scheduler) Context() context.Context {
	return s.ctx
}

// ScheduleCron schedules a job with a cron expression.
func (s *Scheduler) ScheduleCron(tag string, cronExpr string, job func() error) error {
	_, err := s.scheduler.Cron(cronExpr).Tag(tag).Do(job)
	return err
}

// ScheduleInterval schedules a job to run at regular intervals.
func (s *Scheduler) ScheduleInterval(tag string, interval time.Duration, job func() error) error {
	_, err := s.scheduler.Every(interval).Tag(tag).Do(job)
	return err
}

// RemoveJob removes a scheduled job by tag.
func (s *Scheduler) RemoveJob(tag string) error {
	return s.scheduler.RemoveByTag(tag)
}

// Jobs returns all scheduled jobs.
func (s *Scheduler) Jobs() []*gocron.Job {
	return s.scheduler.Jobs()
}
