package schedule

import "context"

// Result is the outcome of executing one job
type Result struct {
	Success      bool
	DigestPath   string
	AudioPath    string
	ArticleCount int
	Err          error
}

// Executor runs a job end to end. Implementations record the execution and
// apply the post-execution update themselves; callers only log the Result.
type Executor interface {
	Execute(ctx context.Context, job *Job) Result
}

// Recorder is the store surface an Executor writes run bookkeeping through
type Recorder struct {
	jobs       *Store
	executions *ExecutionStore
}

// NewRecorder combines a job store and an execution store
func NewRecorder(jobs *Store, executions *ExecutionStore) *Recorder {
	return &Recorder{jobs: jobs, executions: executions}
}

// StartExecution inserts a running execution for jobID
func (r *Recorder) StartExecution(jobID string) (int64, error) {
	return r.executions.StartExecution(jobID)
}

// CompleteExecution seals execution id
func (r *Recorder) CompleteExecution(id int64, res ExecutionResult) error {
	return r.executions.CompleteExecution(id, res)
}

// ApplyPostExecutionUpdate records the run outcome on the job row
func (r *Recorder) ApplyPostExecutionUpdate(job *Job, success bool, errMsg string, output string) error {
	return r.jobs.ApplyPostExecutionUpdate(job, success, errMsg, output)
}
