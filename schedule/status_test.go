package schedule

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Lifecycle(t *testing.T) {
	status := NewStatus()

	snap := status.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, StageIdle, snap.Stage)
	assert.Nil(t, snap.CurrentJob)

	status.Begin(&Job{ID: "j1", Name: "Morning", Profile: "tech"})
	snap = status.Snapshot()
	assert.True(t, snap.Running)
	assert.Equal(t, StageStarting, snap.Stage)
	assert.Equal(t, 0, snap.Progress)
	require.NotNil(t, snap.CurrentJob)
	assert.Equal(t, "Morning", snap.CurrentJob.Name)

	status.Update(50, "Processing 4 articles")
	assert.Equal(t, "Processing 4 articles", status.Snapshot().Stage)

	status.Update(150, StageAudio)
	assert.Equal(t, 100, status.Snapshot().Progress)

	status.Fail("no articles found")
	snap = status.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, StageError, snap.Stage)
	assert.Equal(t, "no articles found", snap.Error)

	status.Begin(&Job{ID: "j2"})
	assert.Empty(t, status.Snapshot().Error, "a new run clears the previous error")

	status.Complete()
	snap = status.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, StageComplete, snap.Stage)
}

func TestStatus_SnapshotIsCopy(t *testing.T) {
	status := NewStatus()
	status.Begin(&Job{ID: "j1", Name: "a"})

	snap := status.Snapshot()
	snap.CurrentJob.Name = "mutated"

	assert.Equal(t, "a", status.Snapshot().CurrentJob.Name)
}

func TestStatus_VersionIncrements(t *testing.T) {
	status := NewStatus()
	v0 := status.Snapshot().Version

	status.Begin(&Job{ID: "j1"})
	status.Update(10, StageLoadProfile)

	assert.Equal(t, v0+2, status.Snapshot().Version)
}

func TestStatus_ConcurrentAccess(t *testing.T) {
	status := NewStatus()
	status.Begin(&Job{ID: "j1"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(p int) {
			defer wg.Done()
			status.Update(p*10, StageFetching)
		}(i)
		go func() {
			defer wg.Done()
			_ = status.Snapshot()
		}()
	}
	wg.Wait()

	assert.True(t, status.Running())
}

func TestQueue_DedupFIFO(t *testing.T) {
	q := NewQueue()

	assert.True(t, q.Push(&Job{ID: "a", Name: "A"}))
	assert.True(t, q.Push(&Job{ID: "b", Name: "B"}))
	assert.False(t, q.Push(&Job{ID: "a", Name: "A"}))
	assert.Equal(t, 2, q.Len())

	items := q.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)

	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "a", first.ID)

	// Popped ids can be queued again
	assert.True(t, q.Push(&Job{ID: "a"}))

	second, _ := q.Pop()
	assert.Equal(t, "b", second.ID)
	third, _ := q.Pop()
	assert.Equal(t, "a", third.ID)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestQueue_PushFront(t *testing.T) {
	q := NewQueue()
	q.Push(&Job{ID: "a"})
	q.Push(&Job{ID: "b"})

	first, _ := q.Pop()
	require.Equal(t, "a", first.ID)

	assert.True(t, q.PushFront(&Job{ID: "a"}))
	assert.False(t, q.PushFront(&Job{ID: "b"}), "already queued")

	items := q.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)
}
