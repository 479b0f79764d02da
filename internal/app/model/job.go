package model

import (
	"time"
)

// Recurrence types accepted on a template job.
const (
	RecurrenceDaily    = "daily"
	RecurrenceWeekdays = "weekdays"
	RecurrenceWeekends = "weekends"
	RecurrenceWeekly   = "weekly"
	RecurrenceMonthly  = "monthly"
)

// Storage sub-status values for local/remote replication.
const (
	StoragePending = "PENDING"
	StorageSuccess = "SUCCESS"
	StorageFailed  = "FAILED"
)

// Job is one scheduled or executed capture window. A job with
// IsRecurring=true is a recurrence template: it seeds generated instances
// and is never itself captured.
type Job struct {
	ID              int64
	Name            string
	StationID       int64
	PodcastID       *int64
	StartTime       time.Time
	EndTime         time.Time
	DurationSeconds int
	State           JobState
	FilePath        string
	FileSize        int64
	Format          string
	Bitrate         int
	IsRecurring     bool
	RecurrenceType  string
	RecurrenceEnd   *time.Time
	LocalStorage    string
	RemoteStorage   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Window reports whether t lies inside [StartTime, EndTime).
func (j *Job) Window(t time.Time) bool {
	return !t.Before(j.StartTime) && t.Before(j.EndTime)
}

// Remaining returns the capture time left at t, clamped at zero.
func (j *Job) Remaining(t time.Time) time.Duration {
	d := j.EndTime.Sub(t)
	if d < 0 {
		return 0
	}
	return d
}

// NextInstance builds the generated instance of a recurrence series starting
// at start, inheriting the template's capture parameters.
func (j *Job) NextInstance(start time.Time) *Job {
	return &Job{
		Name:            j.Name,
		StationID:       j.StationID,
		PodcastID:       j.PodcastID,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(j.DurationSeconds) * time.Second),
		DurationSeconds: j.DurationSeconds,
		State:           Scheduled(),
		Format:          j.Format,
		Bitrate:         j.Bitrate,
		IsRecurring:     false,
		LocalStorage:    StoragePending,
		RemoteStorage:   StoragePending,
	}
}
