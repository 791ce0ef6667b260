package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/internal/flock"
	"github.com/kliewerdaniel/News02/logger"
)

// TickerConfig contains configuration for the scheduler loop
type TickerConfig struct {
	Interval     time.Duration // How often to look for due jobs
	ErrorBackoff time.Duration // Sleep after a failed or panicking tick
	LockPath     string        // Lock file shared with the overdue runner; empty disables it
}

// DefaultTickerConfig returns sensible defaults
func DefaultTickerConfig() TickerConfig {
	return TickerConfig{
		Interval:     30 * time.Second,
		ErrorBackoff: 60 * time.Second,
	}
}

// Snapshot is the scheduler state exposed to status readers
type Snapshot struct {
	Status StatusSnapshot `json:"status"`
	Queue  []QueuedJob    `json:"queue"`
}

// Ticker is the background scheduler loop.
//
// Each tick runs at most one job: the oldest immediate-run request if any,
// otherwise the earliest due job. Jobs run synchronously on the loop
// goroutine, so two jobs never execute at once in this process; the lock
// file extends that to other processes.
type Ticker struct {
	store    *Store
	executor Executor
	status   *Status
	queue    *Queue
	cfg      TickerConfig
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	ticks   int64
	lastErr error
}

// NewTicker creates a scheduler loop. status is shared with the executor,
// which reports progress into it.
func NewTicker(store *Store, executor Executor, status *Status, cfg TickerConfig, log *zap.SugaredLogger) *Ticker {
	if log == nil {
		log = logger.Logger
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultTickerConfig().Interval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultTickerConfig().ErrorBackoff
	}
	return &Ticker{
		store:    store,
		executor: executor,
		status:   status,
		queue:    NewQueue(),
		cfg:      cfg,
		logger:   log.Named("ticker"),
	}
}

// Start launches the loop. Calling Start on a running ticker does nothing.
func (t *Ticker) Start() {
	t.StartWithContext(context.Background())
}

// StartWithContext launches the loop bound to ctx. Cancelling ctx stops it
// like Stop does.
func (t *Ticker) StartWithContext(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.run(loopCtx, t.done)
	t.logger.Infow("Scheduler started", "interval", t.cfg.Interval, "error_backoff", t.cfg.ErrorBackoff)
}

// Stop ends the loop and waits for an in-flight job to return.
// Calling Stop on a stopped ticker does nothing.
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	t.logger.Infow("Scheduler stopped")
}

// Running reports whether the loop is active
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// EnqueueImmediate asks the loop to run jobID on its next tick.
// Returns false when the job is already queued.
func (t *Ticker) EnqueueImmediate(jobID string) (bool, error) {
	job, err := t.store.GetJob(jobID)
	if err != nil {
		return false, err
	}

	added := t.queue.Push(job)
	t.logger.Infow("Run requested",
		logger.FieldJobID, job.ID,
		logger.FieldJobName, job.Name,
		"queued", added,
		"queue_length", t.queue.Len())
	return added, nil
}

// Snapshot returns the execution status together with the immediate queue
func (t *Ticker) Snapshot() Snapshot {
	return Snapshot{
		Status: t.status.Snapshot(),
		Queue:  t.queue.Items(),
	}
}

// Stats returns loop counters for diagnostics
func (t *Ticker) Stats() map[string]interface{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := map[string]interface{}{
		"ticks":    t.ticks,
		"interval": t.cfg.Interval.String(),
		"running":  t.cancel != nil,
	}
	if t.lastErr != nil {
		stats["last_error"] = t.lastErr.Error()
	}
	return stats
}

// run is the main loop. Only cancellation ends it.
func (t *Ticker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0) // first tick right away
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		wait := t.cfg.Interval
		if err := t.safeTick(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Warnw("Scheduler tick failed, backing off",
				logger.FieldError, err,
				"backoff", t.cfg.ErrorBackoff)
			wait = t.cfg.ErrorBackoff
		}
		timer.Reset(wait)
	}
}

// safeTick runs one tick, converting a panic into an error
func (t *Ticker) safeTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic in scheduler tick: %v", r)
			if t.status.Running() {
				t.status.Fail(err.Error())
			}
		}
		t.mu.Lock()
		t.ticks++
		t.lastErr = err
		t.mu.Unlock()
	}()
	return t.tick(ctx)
}

// tick runs at most one job
func (t *Ticker) tick(ctx context.Context) error {
	if t.status.Running() {
		return nil
	}

	if item, ok := t.queue.Pop(); ok {
		job, err := t.store.GetJob(item.ID)
		if err != nil {
			if errors.IsNotFoundError(err) {
				t.logger.Warnw("Queued job no longer exists", logger.FieldJobID, item.ID)
				return nil
			}
			return errors.Wrapf(err, "failed to load queued job %s", item.ID)
		}
		if !t.runJob(ctx, job) {
			t.queue.PushFront(job)
		}
		return nil
	}

	jobs, err := t.store.ListJobsDue(t.store.Now())
	if err != nil {
		return errors.Wrap(err, "failed to list due jobs")
	}
	if len(jobs) == 0 {
		return nil
	}
	if len(jobs) > 1 {
		t.logger.Debugw("Jobs waiting for a later tick", logger.FieldCount, len(jobs)-1)
	}

	t.runJob(ctx, jobs[0])
	return nil
}

// runJob executes job under the lock file. Returns false when the lock was
// held by another process and the job did not run.
func (t *Ticker) runJob(ctx context.Context, job *Job) bool {
	if t.cfg.LockPath != "" {
		lock, err := flock.TryLock(t.cfg.LockPath)
		if err != nil {
			if errors.Is(err, flock.ErrLocked) {
				t.logger.Infow("Another run in progress, deferring job",
					logger.FieldJobID, job.ID,
					logger.FieldPath, t.cfg.LockPath)
				return false
			}
			t.logger.Warnw("Failed to take run lock, running anyway",
				logger.FieldJobID, job.ID,
				logger.FieldError, err)
		} else {
			defer func() {
				if err := lock.Release(); err != nil {
					t.logger.Warnw("Failed to release run lock", logger.FieldError, err)
				}
			}()
		}
	}

	start := time.Now()
	t.logger.Infow("Executing job",
		logger.FieldJobID, job.ID,
		logger.FieldJobName, job.Name,
		logger.FieldProfile, job.Profile)

	res := t.executor.Execute(ctx, job)

	logResult(t.logger, job, res, time.Since(start))
	return true
}

func logResult(log *zap.SugaredLogger, job *Job, res Result, elapsed time.Duration) {
	if res.Success {
		log.Infow("Job completed",
			logger.FieldJobID, job.ID,
			logger.FieldJobName, job.Name,
			logger.FieldCount, res.ArticleCount,
			logger.FieldFile, res.DigestPath,
			logger.FieldDurationMS, elapsed.Milliseconds())
		return
	}
	log.Errorw("Job failed",
		logger.FieldJobID, job.ID,
		logger.FieldJobName, job.Name,
		logger.FieldDurationMS, elapsed.Milliseconds(),
		logger.FieldError, res.Err)
}
