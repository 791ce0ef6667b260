package schedule

import "time"

// Execution is one pipeline run of a job.
//
// A row is inserted as running when the pipeline starts and sealed exactly
// once as completed or failed. Sealed rows are never updated again.
type Execution struct {
	ID           int64      `json:"id"`
	JobID        string     `json:"job_id"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"` // nil while running
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	OutputFile   *string    `json:"output_file,omitempty"`
	AudioFile    *string    `json:"audio_file,omitempty"`
	ArticleCount *int       `json:"article_count,omitempty"`
}

// Execution status constants
const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
)

// Duration returns how long the run took, or zero while it is still running
func (e *Execution) Duration() time.Duration {
	if e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}

// ExecutionResult is the outcome used to seal an execution.
// Empty strings and a zero ArticleCount are stored as NULL.
type ExecutionResult struct {
	Success      bool
	ErrorMessage string
	OutputFile   string
	AudioFile    string
	ArticleCount int
}

// AbandonedMessage is recorded on running executions left behind by a
// process that exited mid-run
const AbandonedMessage = "abandoned: process exited before completion"
