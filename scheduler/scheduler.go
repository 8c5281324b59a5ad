package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"golemio-extractor/config"
	"golemio-extractor/utils"
)

// Scheduler triggers a job at fixed daily wall-clock times. A trigger that
// fires while the previous run is still in progress is skipped, so two runs
// never race on the same snapshot files.
type Scheduler struct {
	cron   *cron.Cron
	logger *utils.Logger
}

// New creates a Scheduler evaluating times in loc.
func New(loc *time.Location, logger *utils.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Spec renders a daily trigger as a standard five-field cron expression.
func Spec(t config.ScheduleTime) string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

// AddDaily registers job for every trigger time.
func (s *Scheduler) AddDaily(times []config.ScheduleTime, job func()) error {
	for _, t := range times {
		if _, err := s.cron.AddFunc(Spec(t), job); err != nil {
			return fmt.Errorf("scheduler: add %02d:%02d: %w", t.Hour, t.Minute, err)
		}
		s.logger.Info("[scheduler] Daily run scheduled at %02d:%02d", t.Hour, t.Minute)
	}
	return nil
}

// Next returns the next trigger time, or the zero time when nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		n := e.Schedule.Next(time.Now())
		if next.IsZero() || n.Before(next) {
			next = n
		}
	}
	return next
}

// Run starts the scheduler and blocks until ctx is cancelled, then waits for
// a running job to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	if next := s.Next(); !next.IsZero() {
		s.logger.Info("[scheduler] Next run at %s", next.Format(time.RFC3339))
	}
	<-ctx.Done()
	s.logger.Info("[scheduler] Stopping, waiting for running job")
	<-s.cron.Stop().Done()
	s.logger.Info("[scheduler] Scheduler stopped.")
}

type cronLogger struct {
	logger *utils.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("[scheduler] cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("[scheduler] cron: %s: %v %v", msg, err, keysAndValues)
}
