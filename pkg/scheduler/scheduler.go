package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/billrun/pkg/observability"
)

// Scheduler triggers the billing job on a cron schedule in UTC. A tick that
// fires while the previous run is still going is skipped.
type Scheduler struct {
	cron   *cron.Cron
	job    *Job
	logger *observability.Logger

	mu       sync.Mutex
	entry    cron.EntryID
	spec     cron.Schedule
	schedule string

	ctx    context.Context
	cancel context.CancelFunc
}

// New parses a standard five field cron expression and binds it to job.
// Runs started by the scheduler use a context that is cancelled when Stop
// gives up waiting.
func New(schedule string, job *Job, logger *observability.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = job.Logger
	}
	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:   c,
		job:    job,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := s.Reschedule(schedule); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) tick() {
	// errors are already logged and recorded by the job
	_, _ = s.job.Run(s.ctx)
}

// Reschedule replaces the cron expression. A run in progress is not affected.
func (s *Scheduler) Reschedule(schedule string) error {
	spec, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("invalid billing schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == schedule {
		return nil
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.logger.WithFields(map[string]interface{}{
			"old_schedule": s.schedule,
			"schedule":     schedule,
		}).Info("billing schedule changed")
	}
	s.entry = s.cron.Schedule(spec, cron.FuncJob(s.tick))
	s.spec = spec
	s.schedule = schedule
	return nil
}

// Schedule returns the current cron expression
func (s *Scheduler) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule
}

// Start begins firing the schedule in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithFields(map[string]interface{}{
		"schedule": s.Schedule(),
		"next_run": s.Next(),
	}).Info("billing scheduler started")
}

// Next returns the next time the job fires
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec.Next(time.Now().UTC())
}

// Stop halts the schedule and waits for a running job to finish. When ctx
// expires first the running job's context is cancelled and ctx.Err() is
// returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.logger.Info("billing scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		s.logger.Warn("billing scheduler stop timed out, cancelling running job")
		return ctx.Err()
	}
}

// cronLogger adapts observability.Logger to cron.Logger
type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).WithFields(kvFields(keysAndValues)).Error("cron: " + msg)
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			key = fmt.Sprint(keysAndValues[i])
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}
