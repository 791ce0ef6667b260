// Package schedule stores digest jobs, decides when they are due and drives
// their execution one at a time.
package schedule

import (
	"strings"
	"time"

	"github.com/kliewerdaniel/News02/errors"
)

// ErrValidation marks rejected job input. It is errors.ErrInvalidRequest so
// the HTTP and CLI layers map it without importing this package.
var ErrValidation = errors.ErrInvalidRequest

// Recurrence is how often a job repeats
type Recurrence string

// Recurrence values
const (
	RecurrenceOnce     Recurrence = "once"     // runs at the next occurrence of Time, then disables itself
	RecurrenceDaily    Recurrence = "daily"    // every day at Time
	RecurrenceWeekdays Recurrence = "weekdays" // Monday through Friday at Time
	RecurrenceWeekends Recurrence = "weekends" // Saturday and Sunday at Time
)

// Valid reports whether r is a known recurrence
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceOnce, RecurrenceDaily, RecurrenceWeekdays, RecurrenceWeekends:
		return true
	}
	return false
}

// Recurrences lists every accepted value (CLI help, validation messages)
var Recurrences = []Recurrence{RecurrenceOnce, RecurrenceDaily, RecurrenceWeekdays, RecurrenceWeekends}

// Defaults applied when a JobSpec leaves a tunable empty
const (
	DefaultArticlesPerFeed = 1
	DefaultSummaryModel    = "default_model"
	DefaultBroadcastModel  = "broadcast_model"
	DefaultRecurrence      = RecurrenceOnce
)

// Job is a scheduled digest run
type Job struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Time            string     `json:"time"` // HH:MM wall clock, no date
	Profile         string     `json:"profile"`
	ArticlesPerFeed int        `json:"articles_per_feed"`
	SummaryModel    string     `json:"summary_model"`
	BroadcastModel  string     `json:"broadcast_model"`
	Recurrence      Recurrence `json:"recurrence"`
	Enabled         bool       `json:"enabled"`
	CreatedAt       time.Time  `json:"created_at"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	NextRun         *time.Time `json:"next_run,omitempty"` // nil = not scheduled
	RunCount        int        `json:"run_count"`
	SuccessCount    int        `json:"success_count"`
	LastError       *string    `json:"last_error,omitempty"`
	LastOutput      *string    `json:"last_output,omitempty"`
}

// IsDue reports whether the job should run at now
func (j *Job) IsDue(now time.Time) bool {
	return j.Enabled && j.NextRun != nil && !j.NextRun.After(now)
}

// JobSpec is the input to Store.CreateJob
type JobSpec struct {
	Name            string     `json:"name"`
	Time            string     `json:"time"`
	Profile         string     `json:"profile"`
	ArticlesPerFeed int        `json:"articles_per_feed,omitempty"`
	SummaryModel    string     `json:"summary_model,omitempty"`
	BroadcastModel  string     `json:"broadcast_model,omitempty"`
	Recurrence      Recurrence `json:"recurrence,omitempty"`
	Enabled         *bool      `json:"enabled,omitempty"` // nil = enabled
}

// normalize fills defaults and validates required fields
func (s JobSpec) normalize() (JobSpec, error) {
	s.Name = strings.TrimSpace(s.Name)
	s.Time = strings.TrimSpace(s.Time)
	s.Profile = strings.TrimSpace(s.Profile)

	var missing []string
	if s.Name == "" {
		missing = append(missing, "name")
	}
	if s.Time == "" {
		missing = append(missing, "time")
	}
	if s.Profile == "" {
		missing = append(missing, "profile")
	}
	if len(missing) > 0 {
		return s, errors.NewInvalidRequestError("missing required fields: %s", strings.Join(missing, ", "))
	}

	if s.ArticlesPerFeed == 0 {
		s.ArticlesPerFeed = DefaultArticlesPerFeed
	}
	if s.SummaryModel == "" {
		s.SummaryModel = DefaultSummaryModel
	}
	if s.BroadcastModel == "" {
		s.BroadcastModel = DefaultBroadcastModel
	}
	if s.Recurrence == "" {
		s.Recurrence = DefaultRecurrence
	}

	if err := validateTunables(s.Time, s.Recurrence, s.ArticlesPerFeed); err != nil {
		return s, err
	}
	return s, nil
}

// JobPatch lists the fields a caller may change after creation.
// Nil fields are left untouched. Counters, timestamps and last_* are owned
// by the store and the pipeline and cannot be patched.
type JobPatch struct {
	Name            *string     `json:"name,omitempty"`
	Time            *string     `json:"time,omitempty"`
	Profile         *string     `json:"profile,omitempty"`
	ArticlesPerFeed *int        `json:"articles_per_feed,omitempty"`
	SummaryModel    *string     `json:"summary_model,omitempty"`
	BroadcastModel  *string     `json:"broadcast_model,omitempty"`
	Recurrence      *Recurrence `json:"recurrence,omitempty"`
	Enabled         *bool       `json:"enabled,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p JobPatch) IsEmpty() bool {
	return p.Name == nil && p.Time == nil && p.Profile == nil && p.ArticlesPerFeed == nil &&
		p.SummaryModel == nil && p.BroadcastModel == nil && p.Recurrence == nil && p.Enabled == nil
}

// affectsSchedule reports whether applying the patch requires recomputing next_run
func (p JobPatch) affectsSchedule() bool {
	return p.Time != nil || p.Recurrence != nil || p.Enabled != nil
}

// apply returns a copy of job with the patch applied and validated
func (p JobPatch) apply(job Job) (Job, error) {
	if p.Name != nil {
		job.Name = strings.TrimSpace(*p.Name)
		if job.Name == "" {
			return job, errors.NewInvalidRequestError("name cannot be empty")
		}
	}
	if p.Time != nil {
		job.Time = strings.TrimSpace(*p.Time)
	}
	if p.Profile != nil {
		job.Profile = strings.TrimSpace(*p.Profile)
		if job.Profile == "" {
			return job, errors.NewInvalidRequestError("profile cannot be empty")
		}
	}
	if p.ArticlesPerFeed != nil {
		job.ArticlesPerFeed = *p.ArticlesPerFeed
	}
	if p.SummaryModel != nil {
		job.SummaryModel = *p.SummaryModel
	}
	if p.BroadcastModel != nil {
		job.BroadcastModel = *p.BroadcastModel
	}
	if p.Recurrence != nil {
		job.Recurrence = *p.Recurrence
	}
	if p.Enabled != nil {
		job.Enabled = *p.Enabled
	}

	if err := validateTunables(job.Time, job.Recurrence, job.ArticlesPerFeed); err != nil {
		return job, err
	}
	return job, nil
}

func validateTunables(timeOfDay string, recurrence Recurrence, articlesPerFeed int) error {
	if _, _, err := ParseTimeOfDay(timeOfDay); err != nil {
		return errors.Mark(err, ErrValidation)
	}
	if !recurrence.Valid() {
		return errors.NewInvalidRequestError("unknown recurrence %q (want one of %v)", recurrence, Recurrences)
	}
	if articlesPerFeed < 1 {
		return errors.NewInvalidRequestError("articles_per_feed must be >= 1, got %d", articlesPerFeed)
	}
	return nil
}
