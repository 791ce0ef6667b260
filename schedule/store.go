package schedule

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kliewerdaniel/News02/errors"
)

// Store handles persistence of scheduled jobs
type Store struct {
	db      *sql.DB
	timeNow func() time.Time // Injectable for testing
}

// NewStore creates a new job store using the wall clock
func NewStore(db *sql.DB) *Store {
	return NewStoreWithClock(db, time.Now)
}

// NewStoreWithClock creates a job store with an injectable clock (for testing)
func NewStoreWithClock(db *sql.DB, timeNow func() time.Time) *Store {
	return &Store{db: db, timeNow: timeNow}
}

// Now returns the store's notion of the current time
func (s *Store) Now() time.Time {
	return s.timeNow()
}

const jobColumns = `id, name, time, profile, articles_per_feed, summary_model,
	broadcast_model, recurrence, enabled, created_at, last_run, next_run,
	run_count, success_count, last_error, last_output`

// CreateJob validates spec, computes its first next_run and persists it.
// Returns the new job id.
func (s *Store) CreateJob(spec JobSpec) (string, error) {
	spec, err := spec.normalize()
	if err != nil {
		return "", err
	}

	now := s.timeNow()
	enabled := spec.Enabled == nil || *spec.Enabled

	var nextRun *time.Time
	if enabled {
		nextRun = NextRun(spec.Time, spec.Recurrence, now)
	}

	id := uuid.NewString()
	_, err = s.db.Exec(`
		INSERT INTO scheduled_jobs (
			id, name, time, profile, articles_per_feed, summary_model,
			broadcast_model, recurrence, enabled, created_at, next_run
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		spec.Name,
		spec.Time,
		spec.Profile,
		spec.ArticlesPerFeed,
		spec.SummaryModel,
		spec.BroadcastModel,
		string(spec.Recurrence),
		enabled,
		formatTime(now),
		formatTimePtr(nextRun),
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to create job")
	}

	return id, nil
}

// GetJob retrieves a job by ID
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewNotFoundError("job not found: %s", id)
		}
		return nil, errors.Wrapf(err, "failed to get job %s", id)
	}
	return job, nil
}

// ListJobs returns all jobs ordered by next_run ascending.
// Unscheduled jobs (next_run NULL) sort last, oldest first.
func (s *Store) ListJobs() ([]*Job, error) {
	return s.queryJobs(`SELECT ` + jobColumns + ` FROM scheduled_jobs
		ORDER BY next_run IS NULL, next_run ASC, created_at ASC`)
}

// ListJobsDue returns enabled jobs whose next_run has arrived, earliest first
func (s *Store) ListJobsDue(now time.Time) ([]*Job, error) {
	return s.queryJobs(`SELECT `+jobColumns+` FROM scheduled_jobs
		WHERE enabled = TRUE AND next_run IS NOT NULL AND next_run <= ?
		ORDER BY next_run ASC`, formatTime(now))
}

// GetNextScheduledJob returns the enabled job with the earliest next_run, or nil
func (s *Store) GetNextScheduledJob() (*Job, error) {
	row := s.db.QueryRow(`SELECT ` + jobColumns + ` FROM scheduled_jobs
		WHERE enabled = TRUE AND next_run IS NOT NULL
		ORDER BY next_run ASC LIMIT 1`)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get next scheduled job")
	}
	return job, nil
}

// UpdateJob applies patch to the job. When the patch touches time,
// recurrence or enabled, next_run is recomputed (or cleared when disabled).
// Returns false for an empty patch or an unknown id.
func (s *Store) UpdateJob(id string, patch JobPatch) (bool, error) {
	if patch.IsEmpty() {
		return false, nil
	}

	current, err := s.GetJob(id)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return false, nil
		}
		return false, err
	}

	updated, err := patch.apply(*current)
	if err != nil {
		return false, err
	}

	nextRun := updated.NextRun
	if patch.affectsSchedule() {
		nextRun = s.scheduleFor(&updated)
	}

	result, err := s.db.Exec(`
		UPDATE scheduled_jobs
		SET name = ?, time = ?, profile = ?, articles_per_feed = ?,
		    summary_model = ?, broadcast_model = ?, recurrence = ?,
		    enabled = ?, next_run = ?
		WHERE id = ?`,
		updated.Name,
		updated.Time,
		updated.Profile,
		updated.ArticlesPerFeed,
		updated.SummaryModel,
		updated.BroadcastModel,
		string(updated.Recurrence),
		updated.Enabled,
		formatTimePtr(nextRun),
		id,
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to update job %s", id)
	}
	return rowsChanged(result)
}

// ToggleJob enables or disables a job. Enabling recomputes next_run from
// the job's time and recurrence; disabling clears it.
// Returns false when the job does not exist.
func (s *Store) ToggleJob(id string, enabled bool) (bool, error) {
	return s.UpdateJob(id, JobPatch{Enabled: &enabled})
}

// DeleteJob removes a job and its execution history in one transaction.
// Returns false when the job did not exist.
func (s *Store) DeleteJob(id string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, errors.Wrap(err, "failed to begin delete")
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM job_executions WHERE job_id = ?`, id); err != nil {
		return false, errors.Wrapf(err, "failed to delete executions for job %s", id)
	}

	result, err := tx.Exec(`DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return false, errors.Wrapf(err, "failed to delete job %s", id)
	}
	deleted, err := rowsChanged(result)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, errors.Wrap(err, "failed to commit delete")
	}
	return deleted, nil
}

// ApplyPostExecutionUpdate records the outcome of a run on the job row:
// last_run, run_count, success_count and last_error, plus last_output on
// success. Scheduling follows the row as it is now, not job: a toggle or
// edit made while the run was in flight wins. Recurring jobs that are still
// enabled get their next occurrence; once jobs are disabled with next_run
// cleared whatever the outcome.
func (s *Store) ApplyPostExecutionUpdate(job *Job, success bool, errMsg string, output string) error {
	now := s.timeNow()

	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin post-execution update")
	}
	defer tx.Rollback()

	current, err := scanJob(tx.QueryRow(`SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = ?`, job.ID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Deleted while running
			return errors.NewNotFoundError("job not found: %s", job.ID)
		}
		return errors.Wrapf(err, "failed to reload job %s", job.ID)
	}

	enabled := current.Enabled
	var nextRun *time.Time
	if current.Recurrence == RecurrenceOnce {
		enabled = false
	} else if enabled {
		nextRun = NextRun(current.Time, current.Recurrence, now)
	}

	var query string
	var args []interface{}
	if success {
		query = `
			UPDATE scheduled_jobs
			SET last_run = ?, run_count = run_count + 1, success_count = success_count + 1,
			    last_error = NULL, last_output = ?, enabled = ?, next_run = ?
			WHERE id = ?`
		args = []interface{}{formatTime(now), nullString(output), enabled, formatTimePtr(nextRun), job.ID}
	} else {
		query = `
			UPDATE scheduled_jobs
			SET last_run = ?, run_count = run_count + 1,
			    last_error = ?, enabled = ?, next_run = ?
			WHERE id = ?`
		args = []interface{}{formatTime(now), nullString(errMsg), enabled, formatTimePtr(nextRun), job.ID}
	}

	if _, err := tx.Exec(query, args...); err != nil {
		return errors.Wrapf(err, "failed to record execution outcome for job %s", job.ID)
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "failed to commit execution outcome for job %s", job.ID)
	}
	return nil
}

// scheduleFor computes next_run for a job's current enabled/time/recurrence
func (s *Store) scheduleFor(job *Job) *time.Time {
	if !job.Enabled {
		return nil
	}
	return NextRun(job.Time, job.Recurrence, s.timeNow())
}

func (s *Store) queryJobs(query string, args ...interface{}) ([]*Job, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate jobs")
	}
	return jobs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var recurrence, createdAt string
	var lastRun, nextRun, lastError, lastOutput sql.NullString

	err := row.Scan(
		&job.ID,
		&job.Name,
		&job.Time,
		&job.Profile,
		&job.ArticlesPerFeed,
		&job.SummaryModel,
		&job.BroadcastModel,
		&recurrence,
		&job.Enabled,
		&createdAt,
		&lastRun,
		&nextRun,
		&job.RunCount,
		&job.SuccessCount,
		&lastError,
		&lastOutput,
	)
	if err != nil {
		return nil, err
	}

	job.Recurrence = Recurrence(recurrence)

	// Unparseable timestamps mean data corruption or a schema mismatch
	if job.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for job %s", job.ID)
	}
	if job.LastRun, err = parseNullTime(lastRun); err != nil {
		return nil, errors.Wrapf(err, "failed to parse last_run for job %s", job.ID)
	}
	if job.NextRun, err = parseNullTime(nextRun); err != nil {
		return nil, errors.Wrapf(err, "failed to parse next_run for job %s", job.ID)
	}
	if lastError.Valid {
		job.LastError = &lastError.String
	}
	if lastOutput.Valid {
		job.LastOutput = &lastOutput.String
	}

	return &job, nil
}

func rowsChanged(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "failed to check rows affected")
	}
	return n > 0, nil
}

// Timestamps are stored as RFC3339 in UTC so that string comparison in SQL
// matches chronological order.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(s))
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
