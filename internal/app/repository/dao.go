// Package repository defines the persistence surface of the job store. All
// operations are single-row atomic reads or writes; the store is the sole
// shared mutable resource between the coordinator and the capture worker.
package repository

import (
	"context"
	"errors"
	"time"

	"radiorec/internal/app/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("repository: not found")

// JobDAO persists capture jobs.
type JobDAO interface {
	GetJob(ctx context.Context, id int64) (*model.Job, error)
	InsertJob(ctx context.Context, job *model.Job) (int64, error)

	// UpdateJobState writes the lifecycle state columns of one job.
	UpdateJobState(ctx context.Context, id int64, state model.JobState) error

	// UpdateJobOutput writes the terminal state together with the capture
	// output in a single statement.
	UpdateJobOutput(ctx context.Context, id int64, state model.JobState, filePath string, fileSize int64) error

	// UpdateRemoteStorage records the replication sub-status.
	UpdateRemoteStorage(ctx context.Context, id int64, status string) error

	// UpdateLocalStorage records the secondary local copy sub-status.
	UpdateLocalStorage(ctx context.Context, id int64, status string) error

	// FindActiveWindow returns non-template jobs whose window contains now
	// and whose phase is SCHEDULED or RECORDING, ordered by start_time.
	FindActiveWindow(ctx context.Context, now time.Time) ([]*model.Job, error)

	// FindAbandoned returns RECORDING jobs whose end_time fell within the
	// lookback window before now: captures a dead process never finalized.
	FindAbandoned(ctx context.Context, now time.Time, lookback time.Duration) ([]*model.Job, error)

	// FindDueScheduled returns SCHEDULED jobs whose start_time passed within
	// the grace window, covering timers that never fired.
	FindDueScheduled(ctx context.Context, now time.Time, grace time.Duration) ([]*model.Job, error)

	// FindJobHistory returns non-template jobs starting at or after since,
	// newest first. A zero since returns the full history.
	FindJobHistory(ctx context.Context, since time.Time) ([]*model.Job, error)

	// FindTemplates returns all recurrence templates.
	FindTemplates(ctx context.Context) ([]*model.Job, error)

	// FindTemplateFor returns the template matching a generated instance by
	// (name, station), or ErrNotFound.
	FindTemplateFor(ctx context.Context, name string, stationID int64) (*model.Job, error)

	// FindLatestInstance returns the most recent generated instance of a
	// series by start_time, or ErrNotFound when none exist yet.
	FindLatestInstance(ctx context.Context, name string, stationID int64) (*model.Job, error)

	// InsertInstanceIfAbsent inserts a generated instance unless one already
	// exists at the same (name, station, start_time). Both recurrence
	// triggers funnel through this single conditional insert; it reports
	// whether a row was created.
	InsertInstanceIfAbsent(ctx context.Context, job *model.Job) (bool, error)
}

// StationDAO resolves stream sources.
type StationDAO interface {
	GetStation(ctx context.Context, id int64) (*model.Station, error)
}

// EpisodeDAO persists published podcast episodes.
type EpisodeDAO interface {
	// CreateEpisodeIfAbsent inserts the episode unless one already exists
	// for the same job id. Reports whether a row was created.
	CreateEpisodeIfAbsent(ctx context.Context, ep *model.PodcastEpisode) (bool, error)

	GetEpisodeByJob(ctx context.Context, jobID int64) (*model.PodcastEpisode, error)
}

// Store bundles the three DAOs a service needs.
type Store interface {
	JobDAO
	StationDAO
	EpisodeDAO
}
