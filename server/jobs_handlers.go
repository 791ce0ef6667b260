package server

import (
	"net/http"
	"strconv"

	"github.com/kliewerdaniel/News02/errors"
	"github.com/kliewerdaniel/News02/logger"
	"github.com/kliewerdaniel/News02/schedule"
)

// defaultExecutionLimit is the history page size when ?limit is absent
const defaultExecutionLimit = 20

// ListJobsResponse is the body of GET /api/jobs
type ListJobsResponse struct {
	Jobs  []*schedule.Job `json:"jobs"`
	Count int             `json:"count"`
}

// RunJobResponse is the body of POST /api/jobs/{id}/run
type RunJobResponse struct {
	JobID       string `json:"job_id"`
	Queued      bool   `json:"queued"`
	QueueLength int    `json:"queue_length"`
}

// ToggleJobRequest optionally sets the state; an empty body flips it
type ToggleJobRequest struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// ListExecutionsResponse is the body of GET /api/jobs/{id}/executions
type ListExecutionsResponse struct {
	Executions []*schedule.Execution `json:"executions"`
	Count      int                   `json:"count"`
}

// HandleListJobs lists all jobs, soonest next run first
func (s *Server) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListJobs()
	if err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*schedule.Job{}
	}
	writeJSON(w, http.StatusOK, ListJobsResponse{Jobs: jobs, Count: len(jobs)})
}

// HandleCreateJob creates a job from a JobSpec body
func (s *Server) HandleCreateJob(w http.ResponseWriter, r *http.Request) {
	var spec schedule.JobSpec
	if err := readJSON(r, &spec); err != nil {
		writeWrappedError(w, r, s.logger, err, "invalid request body")
		return
	}

	id, err := s.jobs.CreateJob(spec)
	if err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to create job")
		return
	}
	s.warnUnknownProfile(spec.Profile)

	job, err := s.jobs.GetJob(id)
	if err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to load created job")
		return
	}
	logger.FromContext(r.Context(), s.logger).Infow("Job created",
		logger.FieldJobID, job.ID,
		logger.FieldJobName, job.Name)
	writeJSON(w, http.StatusCreated, job)
}

// HandleGetJob returns one job
func (s *Server) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.PathValue("id"))
	if err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to get job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// HandleUpdateJob applies a partial update
func (s *Server) HandleUpdateJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch schedule.JobPatch
	if err := readJSON(r, &patch); err != nil {
		writeWrappedError(w, r, s.logger, err, "invalid request body")
		return
	}
	if patch.IsEmpty() {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	if !s.apply(w, r, id, func() (bool, error) { return s.jobs.UpdateJob(id, patch) }) {
		return
	}
	if patch.Profile != nil {
		s.warnUnknownProfile(*patch.Profile)
	}
	s.writeJob(w, r, id)
}

// HandleDeleteJob deletes a job and its history
func (s *Server) HandleDeleteJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.apply(w, r, id, func() (bool, error) { return s.jobs.DeleteJob(id) }) {
		return
	}
	logger.FromContext(r.Context(), s.logger).Infow("Job deleted", logger.FieldJobID, id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleJob enables or disables a job
func (s *Server) HandleToggleJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req ToggleJobRequest
	if r.ContentLength != 0 {
		if err := readJSON(r, &req); err != nil {
			writeWrappedError(w, r, s.logger, err, "invalid request body")
			return
		}
	}

	enabled := false
	if req.Enabled != nil {
		enabled = *req.Enabled
	} else {
		job, err := s.jobs.GetJob(id)
		if err != nil {
			writeWrappedError(w, r, s.logger, err, "failed to get job")
			return
		}
		enabled = !job.Enabled
	}

	if !s.apply(w, r, id, func() (bool, error) { return s.jobs.ToggleJob(id, enabled) }) {
		return
	}
	s.writeJob(w, r, id)
}

// HandleRunJob queues a job for the scheduler's next tick
func (s *Server) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	if s.ticker == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler is not running")
		return
	}

	id := r.PathValue("id")
	queued, err := s.ticker.EnqueueImmediate(id)
	if err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to queue job")
		return
	}
	writeJSON(w, http.StatusAccepted, RunJobResponse{
		JobID:       id,
		Queued:      queued,
		QueueLength: len(s.ticker.Snapshot().Queue),
	})
}

// HandleJobExecutions lists a job's executions, newest first
func (s *Server) HandleJobExecutions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := defaultExecutionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	if _, err := s.jobs.GetJob(id); err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to get job")
		return
	}

	execs, err := s.executions.ListExecutions(id, limit)
	if err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to list executions")
		return
	}
	if execs == nil {
		execs = []*schedule.Execution{}
	}
	writeJSON(w, http.StatusOK, ListExecutionsResponse{Executions: execs, Count: len(execs)})
}

// HandleProfiles lists feed profile names
func (s *Server) HandleProfiles(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if s.profiles != nil {
		n, err := s.profiles.Names()
		if err != nil {
			writeWrappedError(w, r, s.logger, err, "failed to list profiles")
			return
		}
		names = append(names, n...)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"profiles": names})
}

// apply runs a store mutation that reports whether the row existed
func (s *Server) apply(w http.ResponseWriter, r *http.Request, id string, fn func() (bool, error)) bool {
	ok, err := fn()
	if err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to update job")
		return false
	}
	if !ok {
		writeWrappedError(w, r, s.logger, errors.NewNotFoundError("job not found: %s", id), "failed to update job")
		return false
	}
	return true
}

func (s *Server) writeJob(w http.ResponseWriter, r *http.Request, id string) {
	job, err := s.jobs.GetJob(id)
	if err != nil {
		writeWrappedError(w, r, s.logger, err, "failed to get job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// warnUnknownProfile logs jobs pointing at profiles the file does not list.
// The job is kept; it fails at run time if the profile is still missing.
func (s *Server) warnUnknownProfile(profile string) {
	if s.profiles == nil {
		return
	}
	names, err := s.profiles.Names()
	if err != nil {
		return
	}
	for _, n := range names {
		if n == profile {
			return
		}
	}
	s.logger.Warnw("Job references unknown profile", logger.FieldProfile, profile)
}
