package schedule

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/internal/flock"
	"github.com/kliewerdaniel/News02/logger"
)

// ErrLockHeld means another process holds the run lock. OverdueRunner
// treats it as a no-op.
var ErrLockHeld = flock.ErrLocked

// OverdueConfig configures a one-shot sweep of due jobs
type OverdueConfig struct {
	LockPath      string        // Required
	Cooldown      time.Duration // Skip jobs whose last_run is more recent than this
	InterJobDelay time.Duration // Pause between consecutive executions
}

// DefaultOverdueConfig returns the cron-friendly defaults
func DefaultOverdueConfig(lockPath string) OverdueConfig {
	return OverdueConfig{
		LockPath:      lockPath,
		Cooldown:      300 * time.Second,
		InterJobDelay: 10 * time.Second,
	}
}

// OverdueRunner executes every due job once and exits. It is the entry
// point for cron-style invocations when no scheduler process is running.
type OverdueRunner struct {
	store    *Store
	executor Executor
	cfg      OverdueConfig
	logger   *zap.SugaredLogger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewOverdueRunner creates a runner
func NewOverdueRunner(store *Store, executor Executor, cfg OverdueConfig, log *zap.SugaredLogger) *OverdueRunner {
	if log == nil {
		log = logger.Logger
	}
	return &OverdueRunner{
		store:    store,
		executor: executor,
		cfg:      cfg,
		logger:   log.Named("overdue"),
		sleep:    sleepContext,
	}
}

// Run executes due jobs one by one under the lock file and returns how many
// succeeded. When another process holds the lock it returns 0 and no error.
func (r *OverdueRunner) Run(ctx context.Context) (int, error) {
	if r.cfg.LockPath == "" {
		return 0, errors.NewInvalidRequestError("overdue runner requires a lock path")
	}

	lock, err := flock.TryLock(r.cfg.LockPath)
	if err != nil {
		if errors.Is(err, ErrLockHeld) {
			r.logger.Infow("Another run in progress, skipping", logger.FieldPath, r.cfg.LockPath)
			return 0, nil
		}
		return 0, errors.Wrap(err, "failed to acquire run lock")
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Warnw("Failed to release run lock", logger.FieldError, err)
		}
	}()

	due, err := r.store.ListJobsDue(r.store.Now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to list due jobs")
	}
	if len(due) == 0 {
		r.logger.Infow("No overdue jobs")
		return 0, nil
	}
	r.logger.Infow("Found overdue jobs", logger.FieldCount, len(due))

	succeeded := 0
	for i, candidate := range due {
		// Re-read: the job may have been edited or run since the listing
		job, err := r.store.GetJob(candidate.ID)
		if err != nil {
			if errors.IsNotFoundError(err) {
				r.logger.Infow("Job deleted before it ran", logger.FieldJobID, candidate.ID)
				continue
			}
			return succeeded, err
		}
		if !job.Enabled {
			r.logger.Infow("Job disabled, skipping", logger.FieldJobID, job.ID, logger.FieldJobName, job.Name)
			continue
		}
		if job.LastRun != nil && r.store.Now().Sub(*job.LastRun) < r.cfg.Cooldown {
			r.logger.Infow("Job ran recently, skipping",
				logger.FieldJobID, job.ID,
				logger.FieldJobName, job.Name,
				logger.FieldLastRun, job.LastRun)
			continue
		}

		start := time.Now()
		r.logger.Infow("Executing overdue job",
			logger.FieldJobID, job.ID,
			logger.FieldJobName, job.Name,
			logger.FieldNextRun, job.NextRun)

		res := r.executor.Execute(ctx, job)
		logResult(r.logger, job, res, time.Since(start))
		if res.Success {
			succeeded++
		}

		if i < len(due)-1 && r.cfg.InterJobDelay > 0 {
			if err := r.sleep(ctx, r.cfg.InterJobDelay); err != nil {
				return succeeded, err
			}
		}
	}

	r.logger.Infow("Overdue run finished", logger.FieldCount, succeeded, "due", len(due))
	return succeeded, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
