package schedule

import (
	"database/sql"
	"time"

	"github.com/kliewerdaniel/News02/errors"
)

// ExecutionStore handles persistence of job execution history
type ExecutionStore struct {
	db      *sql.DB
	timeNow func() time.Time
}

// NewExecutionStore creates a new execution store
func NewExecutionStore(db *sql.DB) *ExecutionStore {
	return NewExecutionStoreWithClock(db, time.Now)
}

// NewExecutionStoreWithClock creates an execution store with an injectable clock
func NewExecutionStoreWithClock(db *sql.DB, timeNow func() time.Time) *ExecutionStore {
	return &ExecutionStore{db: db, timeNow: timeNow}
}

const executionColumns = `id, job_id, started_at, completed_at, status,
	error_message, output_file, audio_file, article_count`

// StartExecution inserts a running record for jobID and returns its id
func (s *ExecutionStore) StartExecution(jobID string) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO job_executions (job_id, started_at, status)
		VALUES (?, ?, ?)`,
		jobID, formatTime(s.timeNow()), ExecutionStatusRunning)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to start execution for job %s", jobID)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read execution id")
	}
	return id, nil
}

// CompleteExecution seals a running execution. Sealing an execution that
// is already completed or failed is an error.
func (s *ExecutionStore) CompleteExecution(id int64, res ExecutionResult) error {
	status := ExecutionStatusFailed
	if res.Success {
		status = ExecutionStatusCompleted
	}

	var articleCount interface{}
	if res.ArticleCount > 0 {
		articleCount = res.ArticleCount
	}

	result, err := s.db.Exec(`
		UPDATE job_executions
		SET completed_at = ?, status = ?, error_message = ?,
		    output_file = ?, audio_file = ?, article_count = ?
		WHERE id = ? AND status = ?`,
		formatTime(s.timeNow()),
		status,
		nullString(res.ErrorMessage),
		nullString(res.OutputFile),
		nullString(res.AudioFile),
		articleCount,
		id,
		ExecutionStatusRunning,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to complete execution %d", id)
	}

	changed, err := rowsChanged(result)
	if err != nil {
		return err
	}
	if !changed {
		return errors.NewNotFoundError("running execution not found: %d", id)
	}
	return nil
}

// GetExecution retrieves an execution by ID
func (s *ExecutionStore) GetExecution(id int64) (*Execution, error) {
	row := s.db.QueryRow(`SELECT `+executionColumns+` FROM job_executions WHERE id = ?`, id)
	exec, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("execution not found: %d", id)
		}
		return nil, errors.Wrapf(err, "failed to get execution %d", id)
	}
	return exec, nil
}

// ListExecutions returns the most recent executions of a job, newest first.
// limit <= 0 returns all of them.
func (s *ExecutionStore) ListExecutions(jobID string, limit int) ([]*Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM job_executions
		WHERE job_id = ? ORDER BY started_at DESC, id DESC`
	args := []interface{}{jobID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query executions")
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan execution")
		}
		executions = append(executions, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate executions")
	}
	return executions, nil
}

// RecordedJobIDs returns the distinct job ids that have execution history
func (s *ExecutionStore) RecordedJobIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT job_id FROM job_executions ORDER BY job_id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query execution job ids")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan job id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ReconcileStale seals executions still marked running that started more
// than olderThan ago. A crashed process leaves these behind; nothing else
// would ever complete them. Returns the number of rows sealed.
func (s *ExecutionStore) ReconcileStale(olderThan time.Duration) (int, error) {
	now := s.timeNow()
	cutoff := now.Add(-olderThan)

	result, err := s.db.Exec(`
		UPDATE job_executions
		SET status = ?, completed_at = ?, error_message = ?
		WHERE status = ? AND started_at < ?`,
		ExecutionStatusFailed,
		formatTime(now),
		AbandonedMessage,
		ExecutionStatusRunning,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to reconcile stale executions")
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to check rows affected")
	}
	return int(n), nil
}

func scanExecution(row rowScanner) (*Execution, error) {
	var exec Execution
	var startedAt string
	var completedAt, errorMessage, outputFile, audioFile sql.NullString
	var articleCount sql.NullInt64

	err := row.Scan(
		&exec.ID,
		&exec.JobID,
		&startedAt,
		&completedAt,
		&exec.Status,
		&errorMessage,
		&outputFile,
		&audioFile,
		&articleCount,
	)
	if err != nil {
		return nil, err
	}

	if exec.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse started_at for execution %d", exec.ID)
	}
	if exec.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse completed_at for execution %d", exec.ID)
	}
	if errorMessage.Valid {
		exec.ErrorMessage = &errorMessage.String
	}
	if outputFile.Valid {
		exec.OutputFile = &outputFile.String
	}
	if audioFile.Valid {
		exec.AudioFile = &audioFile.String
	}
	if articleCount.Valid {
		n := int(articleCount.Int64)
		exec.ArticleCount = &n
	}

	return &exec, nil
}
