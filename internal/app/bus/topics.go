package bus

import "time"

// Bus topics. One Redis stream per topic; durable subscribers attach a
// consumer group to the streams they consume.
const (
	TopicSchedule  = "job.schedule"
	TopicCancel    = "job.cancel"
	TopicStart     = "job.start"
	TopicStop      = "job.stop"
	TopicCompleted = "job.completed"
)

// Consumer group names. Stable across restarts so pending entries survive
// a crash and get redelivered.
const (
	GroupScheduler = "scheduler"
	GroupRecorder  = "recorder"
	GroupStorage   = "storage"
)

// ScheduleCommand asks the coordinator to arm timers for a job.
type ScheduleCommand struct {
	JobID     int64     `json:"job_id" validate:"required"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

// CancelCommand removes a job's unfired timers.
type CancelCommand struct {
	JobID int64 `json:"job_id" validate:"required"`
}

// StartCommand tells the capture worker to begin recording.
type StartCommand struct {
	JobID     int64     `json:"job_id" validate:"required"`
	StationID int64     `json:"station_id" validate:"required"`
	Name      string    `json:"name" validate:"required"`
	Format    string    `json:"format" validate:"required"`
	Bitrate   int       `json:"bitrate"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

// StopCommand is advisory: the capture terminates on its own deadline.
type StopCommand struct {
	JobID int64 `json:"job_id" validate:"required"`
}

// CompletedEvent announces a finalized capture to downstream collaborators.
// Consumers must be idempotent against redelivery of the same job id.
type CompletedEvent struct {
	JobID    int64  `json:"job_id" validate:"required"`
	Status   string `json:"status" validate:"required"`
	Size     int64  `json:"size"`
	Duration int    `json:"duration"`
}
