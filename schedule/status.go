package schedule

import (
	"sync"
	"time"
)

// Progress stage labels. They are shown to users as-is.
const (
	StageIdle        = "Idle"
	StageStarting    = "Starting"
	StageLoadProfile = "Loading RSS profile"
	StageFetching    = "Fetching articles"
	StageSavingFiles = "Saving files"
	StageAudio       = "Generating audio"
	StageComplete    = "Complete"
	StageError       = "Error"
)

// Status is the single-slot execution state shared by the scheduler loop,
// the pipeline it drives, and status readers. Safe for concurrent use.
type Status struct {
	mu         sync.RWMutex
	running    bool
	currentJob *StatusJob
	progress   int
	stage      string
	err        string
	updatedAt  time.Time
	version    uint64
	timeNow    func() time.Time
}

// StatusJob identifies the job currently executing
type StatusJob struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Profile string `json:"profile"`
}

// StatusSnapshot is a point-in-time copy of Status
type StatusSnapshot struct {
	Running    bool       `json:"running"`
	CurrentJob *StatusJob `json:"current_job"`
	Progress   int        `json:"progress"`
	Stage      string     `json:"stage"`
	Error      string     `json:"error,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Version    uint64     `json:"version"` // increments on every change
}

// NewStatus creates an idle status
func NewStatus() *Status {
	return &Status{stage: StageIdle, timeNow: time.Now}
}

// Begin marks job as running at progress 0, clearing any previous error
func (s *Status) Begin(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.currentJob = &StatusJob{ID: job.ID, Name: job.Name, Profile: job.Profile}
	s.progress = 0
	s.stage = StageStarting
	s.err = ""
	s.touch()
}

// Update records pipeline progress. Percentages outside 0-100 are clamped.
func (s *Status) Update(progress int, stage string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = progress
	s.stage = stage
	s.touch()
}

// Complete marks the current run finished successfully
func (s *Status) Complete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.currentJob = nil
	s.progress = 100
	s.stage = StageComplete
	s.touch()
}

// Fail marks the current run failed with msg
func (s *Status) Fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.currentJob = nil
	s.stage = StageError
	s.err = msg
	s.touch()
}

// Running reports whether a job is executing
func (s *Status) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Snapshot returns a copy of the current state
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{
		Running:   s.running,
		Progress:  s.progress,
		Stage:     s.stage,
		Error:     s.err,
		UpdatedAt: s.updatedAt,
		Version:   s.version,
	}
	if s.currentJob != nil {
		job := *s.currentJob
		snap.CurrentJob = &job
	}
	return snap
}

// touch must be called with mu held
func (s *Status) touch() {
	s.version++
	s.updatedAt = s.timeNow()
}
