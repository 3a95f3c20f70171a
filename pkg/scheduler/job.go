package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/billrun/pkg/observability"
)

var (
	// ErrRunInProgress is returned when another billing run holds the lock
	ErrRunInProgress = errors.New("billing run already in progress")

	// ErrLockLost is returned when the run lock was taken away mid-run
	ErrLockLost = errors.New("billing run lost its lock")
)

// Run triggers
const (
	TriggerSchedule = "schedule"
	TriggerAPI      = "api"
	TriggerStartup  = "startup"
	TriggerCLI      = "cli"
)

// Biller performs one billing pass. *billing.Service implements it.
type Biller interface {
	BillAllPending(ctx context.Context) error
}

// Job runs the billing service under a lock and records every attempt
type Job struct {
	Service Biller
	Locker  Locker
	Logger  *observability.Logger
	Metrics *observability.Metrics
	History *History

	// RunTimeout bounds a single run. Zero means no limit.
	RunTimeout time.Duration

	now func() time.Time
}

// NewJob creates a Job. A nil locker serializes runs in this process only,
// a nil history keeps DefaultHistorySize records and a nil logger writes
// info level JSON to stdout.
func NewJob(service Biller, locker Locker, history *History, logger *observability.Logger, metrics *observability.Metrics) *Job {
	if locker == nil {
		locker = &LocalLocker{}
	}
	if history == nil {
		history = NewHistory(DefaultHistorySize)
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Job{
		Service: service,
		Locker:  locker,
		Logger:  logger,
		Metrics: metrics,
		History: history,
	}
}

// Run is a billing run that holds the lock and is waiting to execute
type Run struct {
	job     *Job
	release func()
	lost    <-chan struct{}
	logger  *observability.Logger

	mu     sync.Mutex
	record RunRecord
	done   bool
}

// Run acquires the lock and bills all pending invoices
func (j *Job) Run(ctx context.Context) (RunRecord, error) {
	run, err := j.Begin(ctx, TriggerSchedule)
	if err != nil {
		return run.Record(), err
	}
	return run.Execute(ctx)
}

// Begin assigns a run id and takes the lock without waiting. The returned
// Run is never nil. When err is not nil the run is already finished and
// recorded: ErrRunInProgress marks it skipped, lock errors mark it failed.
func (j *Job) Begin(ctx context.Context, trigger string) (*Run, error) {
	id := uuid.NewString()
	run := &Run{
		job:    j,
		logger: j.Logger.WithFields(map[string]interface{}{"run_id": id, "trigger": trigger}),
		record: RunRecord{
			ID:        id,
			Trigger:   trigger,
			Status:    RunStatusRunning,
			StartedAt: j.clock(),
		},
	}

	release, lost, ok, err := j.Locker.TryLock(ctx)
	if err != nil {
		err = fmt.Errorf("failed to acquire run lock: %w", err)
		run.finish(RunStatusFailed, err)
		return run, err
	}
	if !ok {
		run.finish(RunStatusSkipped, ErrRunInProgress)
		return run, ErrRunInProgress
	}

	run.release = release
	run.lost = lost
	j.History.Add(run.Record())
	return run, nil
}

// ID returns the run id
func (r *Run) ID() string {
	return r.Record().ID
}

// Record returns a snapshot of the run record
func (r *Run) Record() RunRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.record
}

// Execute bills all pending invoices and releases the lock. It may only be
// called once, on a Run returned by Begin without error. If the lock is lost
// while billing, the run is cancelled and fails with ErrLockLost.
func (r *Run) Execute(ctx context.Context) (record RunRecord, err error) {
	defer r.release()

	if r.job.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.job.RunTimeout)
		defer cancel()
	}
	if r.lost != nil {
		lockCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)
		go func() {
			select {
			case <-r.lost:
				r.logger.Error("run lock lost, cancelling billing run")
				cancel(ErrLockLost)
			case <-lockCtx.Done():
			}
		}()
		ctx = lockCtx
	}
	ctx = observability.WithRunID(ctx, r.record.ID)
	ctx = observability.WithLogger(ctx, r.logger)

	r.logger.Info("billing run starting")

	defer func() {
		if perr := observability.PanicError(r.logger, "billing run", recover()); perr != nil {
			err = perr
		}
		if err != nil && errors.Is(context.Cause(ctx), ErrLockLost) && !errors.Is(err, ErrLockLost) {
			err = fmt.Errorf("%w: %w", ErrLockLost, err)
		}
		if err != nil {
			r.finish(RunStatusFailed, err)
		} else {
			r.finish(RunStatusSucceeded, nil)
		}
		record = r.Record()
	}()

	return RunRecord{}, r.job.Service.BillAllPending(ctx)
}

func (r *Run) finish(status RunStatus, err error) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.done = true
	finished := r.job.clock()
	r.record.Status = status
	r.record.FinishedAt = &finished
	if err != nil {
		r.record.Error = err.Error()
	}
	record := r.record
	r.mu.Unlock()

	r.job.History.Add(record)
	r.job.Metrics.RecordRun(string(status), record.Duration())

	logger := r.logger.WithFields(map[string]interface{}{
		"status":      status,
		"duration_ms": record.Duration().Milliseconds(),
	})
	switch status {
	case RunStatusSucceeded:
		logger.Info("billing run complete")
	case RunStatusSkipped:
		logger.Warn("billing run skipped: another run holds the lock")
	default:
		logger.WithError(err).Error("billing run complete")
	}
}

func (j *Job) clock() time.Time {
	if j.now != nil {
		return j.now().UTC()
	}
	return time.Now().UTC()
}
