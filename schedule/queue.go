package schedule

import "sync"

// QueuedJob is an entry of the immediate-run queue
type QueuedJob struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Profile string `json:"profile"`
}

// Queue is the in-memory FIFO of jobs requested to run now.
// A job id appears at most once. Nothing is persisted.
type Queue struct {
	mu    sync.Mutex
	items []QueuedJob
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends job unless it is already queued. Returns whether it was added.
func (q *Queue) Push(job *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.ID == job.ID {
			return false
		}
	}
	q.items = append(q.items, QueuedJob{ID: job.ID, Name: job.Name, Profile: job.Profile})
	return true
}

// PushFront puts job at the head of the queue unless it is already queued.
// Used to return a job whose turn was deferred.
func (q *Queue) PushFront(job *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, item := range q.items {
		if item.ID == job.ID {
			return false
		}
	}
	q.items = append([]QueuedJob{{ID: job.ID, Name: job.Name, Profile: job.Profile}}, q.items...)
	return true
}

// Pop removes and returns the oldest entry
func (q *Queue) Pop() (QueuedJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return QueuedJob{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued jobs
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the queue contents, oldest first
func (q *Queue) Items() []QueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]QueuedJob, len(q.items))
	copy(items, q.items)
	return items
}
