package schedule

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	newstest "github.com/kliewerdaniel/News02/internal/testing"
)

// createTestDB creates an in-memory test database.
func createTestDB(t *testing.T) *sql.DB {
	return newstest.CreateTestDB(t)
}

func ptr[T any](v T) *T {
	return &v
}

// Wednesday 2025-06-04 08:00 UTC
var baseTime = time.Date(2025, 6, 4, 8, 0, 0, 0, time.UTC)

// testClock is a settable clock shared by stores under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingExecutor records the jobs it ran and applies the post-execution
// update the way the digest pipeline does
type recordingExecutor struct {
	mu      sync.Mutex
	store   *Store
	ran     []string
	fail    map[string]bool
	onStart func(job *Job)
}

func newRecordingExecutor(store *Store) *recordingExecutor {
	return &recordingExecutor{store: store, fail: map[string]bool{}}
}

func (e *recordingExecutor) Execute(ctx context.Context, job *Job) Result {
	if e.onStart != nil {
		e.onStart(job)
	}

	e.mu.Lock()
	e.ran = append(e.ran, job.ID)
	failed := e.fail[job.ID]
	e.mu.Unlock()

	if failed {
		_ = e.store.ApplyPostExecutionUpdate(job, false, "boom", "")
		return Result{Err: sql.ErrConnDone}
	}
	_ = e.store.ApplyPostExecutionUpdate(job, true, "", "output/"+job.ID+".md")
	return Result{Success: true, DigestPath: "output/" + job.ID + ".md", ArticleCount: 3}
}

func (e *recordingExecutor) Ran() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ran...)
}

func mustCreate(t *testing.T, store *Store, spec JobSpec) string {
	t.Helper()
	id, err := store.CreateJob(spec)
	if err != nil {
		t.Fatalf("CreateJob(%s): %v", spec.Name, err)
	}
	return id
}
