package schedule

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kliewerdaniel/News02/internal/flock"
)

func newTestOverdueRunner(t *testing.T) (*OverdueRunner, *Store, *testClock, *recordingExecutor, *[]time.Duration) {
	store, clock, _ := newTestStore(t)
	executor := newRecordingExecutor(store)
	cfg := DefaultOverdueConfig(filepath.Join(t.TempDir(), "job_execution.lock"))
	runner := NewOverdueRunner(store, executor, cfg, zap.NewNop().Sugar())

	var slept []time.Duration
	runner.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return runner, store, clock, executor, &slept
}

func TestOverdueRunner_RunsDueJobs(t *testing.T) {
	runner, store, clock, executor, slept := newTestOverdueRunner(t)

	a := mustCreate(t, store, JobSpec{Name: "a", Time: "08:10", Profile: "p", Recurrence: RecurrenceDaily})
	b := mustCreate(t, store, JobSpec{Name: "b", Time: "08:20", Profile: "p"})
	c := mustCreate(t, store, JobSpec{Name: "c", Time: "08:30", Profile: "p", Recurrence: RecurrenceDaily})
	mustCreate(t, store, JobSpec{Name: "later", Time: "18:00", Profile: "p"})
	executor.fail[c] = true

	clock.Set(time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC))

	n, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "only successful runs count")
	assert.Equal(t, []string{a, b, c}, executor.Ran())
	assert.Equal(t, []time.Duration{10 * time.Second, 10 * time.Second}, *slept, "no delay after the last job")

	once, err := store.GetJob(b)
	require.NoError(t, err)
	assert.False(t, once.Enabled)
	assert.Nil(t, once.NextRun)

	assert.NoFileExists(t, runner.cfg.LockPath)
}

func TestOverdueRunner_LockContention(t *testing.T) {
	runner, store, clock, executor, _ := newTestOverdueRunner(t)

	mustCreate(t, store, JobSpec{Name: "a", Time: "08:10", Profile: "p"})
	clock.Set(time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC))

	held, err := flock.TryLock(runner.cfg.LockPath)
	require.NoError(t, err)
	defer held.Release()

	n, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, executor.Ran())
}

func TestOverdueRunner_Cooldown(t *testing.T) {
	runner, store, clock, executor, _ := newTestOverdueRunner(t)

	id := mustCreate(t, store, JobSpec{Name: "a", Time: "08:10", Profile: "p", Recurrence: RecurrenceDaily})
	clock.Set(time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC))

	// Ran two minutes ago but next_run still points at the past
	job, err := store.GetJob(id)
	require.NoError(t, err)
	require.NoError(t, store.ApplyPostExecutionUpdate(job, true, "", "x.md"))
	_, err = store.db.Exec(`UPDATE scheduled_jobs SET next_run = ? WHERE id = ?`,
		formatTime(time.Date(2025, 6, 4, 8, 10, 0, 0, time.UTC)), id)
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	n, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, executor.Ran())

	clock.Advance(5 * time.Minute)
	n, err = runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOverdueRunner_NothingDue(t *testing.T) {
	runner, store, _, executor, _ := newTestOverdueRunner(t)
	mustCreate(t, store, JobSpec{Name: "later", Time: "18:00", Profile: "p"})

	n, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, executor.Ran())
}

func TestOverdueRunner_CancelledBetweenJobs(t *testing.T) {
	runner, store, clock, executor, _ := newTestOverdueRunner(t)

	mustCreate(t, store, JobSpec{Name: "a", Time: "08:10", Profile: "p"})
	mustCreate(t, store, JobSpec{Name: "b", Time: "08:20", Profile: "p"})
	clock.Set(time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC))

	ctx, cancel := context.WithCancel(context.Background())
	executor.onStart = func(*Job) { cancel() }

	n, err := runner.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
	assert.Len(t, executor.Ran(), 1)
	assert.NoFileExists(t, runner.cfg.LockPath)
}

func TestOverdueRunner_RequiresLockPath(t *testing.T) {
	store, _, _ := newTestStore(t)
	runner := NewOverdueRunner(store, newRecordingExecutor(store), OverdueConfig{}, nil)

	_, err := runner.Run(context.Background())
	assert.Error(t, err)
}
