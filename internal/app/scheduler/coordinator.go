// Package scheduler is the schedule coordinator: it converts job windows
// into deferred start/stop actions, recovers state after restarts, advances
// recurring series and runs the periodic self-healing sweeps.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"radiorec/internal/app/bus"
	"radiorec/internal/app/metrics"
	"radiorec/internal/app/model"
	"radiorec/internal/app/repository"
	"radiorec/internal/config"
)

// MessageBus is the slice of the bus the coordinator uses.
type MessageBus interface {
	Publish(ctx context.Context, topic string, payload any) error
	EnsureGroup(ctx context.Context, group string, topics ...string) error
	Fetch(ctx context.Context, group, consumer string, topics []string, block time.Duration, count int64) ([]bus.Message, error)
	ClaimStale(ctx context.Context, group, consumer, topic string, count int64) ([]bus.Message, error)
	Ack(ctx context.Context, group string, msgs ...bus.Message)
}

// ReadinessProber checks the capture worker's health signal before a start
// command is entrusted to it.
type ReadinessProber interface {
	Ready(ctx context.Context) (bool, error)
}

// Coordinator times capture starts and stops. It owns one cooperative run
// loop; every suspension point in it is bounded.
type Coordinator struct {
	store    repository.JobDAO
	bus      MessageBus
	probe    ReadinessProber
	tuning   config.Tuning
	logger   *zap.Logger
	timers   *timerQueue
	consumer string

	busReady  bool
	lastSweep time.Time

	// Injected for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

func NewCoordinator(store repository.JobDAO, mbus MessageBus, probe ReadinessProber, tuning config.Tuning, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		bus:      mbus,
		probe:    probe,
		tuning:   tuning,
		logger:   logger,
		timers:   newTimerQueue(),
		consumer: "coordinator-" + uuid.NewString(),
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Ready reports whether the bus subscription is established. Exposed on the
// coordinator's own health endpoint.
func (c *Coordinator) Ready() bool { return c.busReady }

// ArmedTimers counts live timers, for the health report.
func (c *Coordinator) ArmedTimers() int { return c.timers.Len() }

// Schedule arms the job's start/stop timers. A window already containing
// now starts immediately instead of via timer; re-scheduling a job replaces
// its previous timers.
func (c *Coordinator) Schedule(ctx context.Context, jobID int64, startTime, endTime time.Time) {
	now := c.now()

	if !startTime.After(now) && endTime.After(now) {
		// Re-scheduling drops any timers armed for an earlier window.
		c.timers.Cancel(jobID)
		metrics.ArmedTimers.Set(float64(c.timers.Len()))
		c.logger.Info("job window already open, starting immediately", zap.Int64("job_id", jobID))
		c.Start(ctx, jobID)
		return
	}

	var startAt, stopAt time.Time
	if startTime.After(now) {
		startAt = startTime
	}
	if endTime.After(now) {
		stopAt = endTime
	}
	c.timers.Arm(jobID, startAt, stopAt)
	metrics.ArmedTimers.Set(float64(c.timers.Len()))
	c.logger.Info("armed timers",
		zap.Int64("job_id", jobID),
		zap.Time("start", startTime),
		zap.Time("end", endTime))
}

// CancelJob removes the job's unfired timers. An already-running capture is
// unaffected: there is no preemptive termination.
func (c *Coordinator) CancelJob(jobID int64) {
	c.timers.Cancel(jobID)
	metrics.ArmedTimers.Set(float64(c.timers.Len()))
	c.logger.Info("cancelled timers", zap.Int64("job_id", jobID))
}

// Start drives one job from SCHEDULED into RECORDING and hands it to the
// capture worker. The job is re-read first so a transition made by another
// process is never overwritten. Once RECORDING is persisted, every failure
// path resolves the job to FAILED; it can never remain stuck.
func (c *Coordinator) Start(ctx context.Context, jobID int64) {
	job, err := c.store.GetJob(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		c.logger.Warn("job vanished before start", zap.Int64("job_id", jobID))
		return
	}
	if err != nil {
		c.logger.Error("failed to read job", zap.Int64("job_id", jobID), zap.Error(err))
		return
	}
	if job.IsRecurring {
		c.logger.Warn("refusing to start recurrence template", zap.Int64("job_id", jobID))
		return
	}
	if !job.State.Active() {
		c.logger.Warn("job not startable",
			zap.Int64("job_id", jobID), zap.String("phase", string(job.State.Phase)))
		return
	}

	recording, err := job.State.Start()
	if err != nil {
		c.logger.Warn("start rejected", zap.Int64("job_id", jobID), zap.Error(err))
		return
	}
	// RECORDING must be durable before anything else happens.
	if err := c.store.UpdateJobState(ctx, jobID, recording); err != nil {
		c.logger.Error("failed to persist RECORDING", zap.Int64("job_id", jobID), zap.Error(err))
		return
	}

	if !c.awaitWorkerReady(ctx) {
		c.failJob(ctx, jobID, recording, "capture worker never became ready")
		metrics.StartFailuresTotal.WithLabelValues("probe").Inc()
		return
	}

	cmd := bus.StartCommand{
		JobID:     job.ID,
		StationID: job.StationID,
		Name:      job.Name,
		Format:    job.Format,
		Bitrate:   job.Bitrate,
		EndTime:   job.EndTime,
	}
	if !c.publishWithRetry(ctx, bus.TopicStart, cmd) {
		c.failJob(ctx, jobID, recording, "failed to publish start command")
		metrics.StartFailuresTotal.WithLabelValues("publish").Inc()
		return
	}

	c.logger.Info("started job", zap.Int64("job_id", jobID), zap.String("name", job.Name))
}

// Stop publishes the advisory stop notification. The capture terminates on
// the deadline computed at start time; this signal never kills it.
func (c *Coordinator) Stop(ctx context.Context, jobID int64) {
	if err := c.bus.Publish(ctx, bus.TopicStop, bus.StopCommand{JobID: jobID}); err != nil {
		c.logger.Warn("failed to publish stop", zap.Int64("job_id", jobID), zap.Error(err))
		return
	}
	c.logger.Info("published stop", zap.Int64("job_id", jobID))
}

// awaitWorkerReady polls the worker health signal with a bounded backoff.
func (c *Coordinator) awaitWorkerReady(ctx context.Context) bool {
	for attempt := 1; attempt <= c.tuning.ProbeAttempts; attempt++ {
		ready, err := c.probe.Ready(ctx)
		if ready {
			return true
		}
		if err != nil {
			c.logger.Warn("readiness probe failed",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.tuning.ProbeAttempts),
				zap.Error(err))
		} else {
			c.logger.Info("capture worker not ready",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.tuning.ProbeAttempts))
		}
		if attempt < c.tuning.ProbeAttempts {
			c.sleep(c.tuning.ProbeBackoff)
		}
	}
	return false
}

// publishWithRetry publishes with the bounded retry budget. Reports whether
// the publish eventually succeeded.
func (c *Coordinator) publishWithRetry(ctx context.Context, topic string, payload any) bool {
	for attempt := 1; attempt <= c.tuning.PublishAttempts; attempt++ {
		err := c.bus.Publish(ctx, topic, payload)
		if err == nil {
			return true
		}
		c.logger.Warn("publish attempt failed",
			zap.String("topic", topic),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.tuning.PublishAttempts),
			zap.Error(err))
		if attempt < c.tuning.PublishAttempts {
			c.sleep(c.tuning.PublishBackoff)
		}
	}
	return false
}

func (c *Coordinator) failJob(ctx context.Context, jobID int64, state model.JobState, reason string) {
	failed, err := state.Fail(reason)
	if err != nil {
		c.logger.Error("cannot fail job", zap.Int64("job_id", jobID), zap.Error(err))
		return
	}
	if err := c.store.UpdateJobState(ctx, jobID, failed); err != nil {
		c.logger.Error("failed to persist FAILED", zap.Int64("job_id", jobID), zap.Error(err))
		return
	}
	c.logger.Error("job failed before capture",
		zap.Int64("job_id", jobID), zap.String("reason", reason))
}

// Run executes the coordinator loop until ctx is done: drain schedule and
// cancel messages, dispatch due timers, catch mis-armed jobs inside the
// grace window, and periodically sweep recurring series. The loop sleeps
// until the earliest armed deadline, never longer than the poll interval.
func (c *Coordinator) Run(ctx context.Context) error {
	if err := c.bus.EnsureGroup(ctx, bus.GroupScheduler, bus.TopicSchedule, bus.TopicCancel); err != nil {
		return fmt.Errorf("failed to set up scheduler queues: %w", err)
	}
	c.busReady = true

	c.ReconcileOnStartup(ctx)
	c.lastSweep = c.now()
	c.RecurrenceSweep(ctx)

	c.logger.Info("coordinator running")
	for ctx.Err() == nil {
		c.drainMessages(ctx)

		now := c.now()
		for _, t := range c.timers.PopDue(now) {
			switch t.action {
			case actionStart:
				c.Start(ctx, t.jobID)
			case actionStop:
				c.Stop(ctx, t.jobID)
			}
		}
		metrics.ArmedTimers.Set(float64(c.timers.Len()))

		c.catchOverdue(ctx, now)

		if now.Sub(c.lastSweep) >= c.tuning.SweepInterval {
			c.RecurrenceSweep(ctx)
			c.lastSweep = now
		}

		c.sleep(c.napUntilNextDeadline())
	}
	return ctx.Err()
}

// drainMessages handles whatever schedule/cancel commands are waiting,
// without blocking beyond a short bounded fetch. Entries a dead coordinator
// left unacked are claimed first; consumer names are per-boot, so without
// the claim pass those entries would strand in the old consumer's PEL.
func (c *Coordinator) drainMessages(ctx context.Context) {
	topics := []string{bus.TopicSchedule, bus.TopicCancel}

	var batch []bus.Message
	for _, topic := range topics {
		claimed, err := c.bus.ClaimStale(ctx, bus.GroupScheduler, c.consumer, topic, 16)
		if err != nil && ctx.Err() == nil {
			c.logger.Warn("stale claim failed", zap.String("topic", topic), zap.Error(err))
		}
		batch = append(batch, claimed...)
	}

	msgs, err := c.bus.Fetch(ctx, bus.GroupScheduler, c.consumer,
		topics, 50*time.Millisecond, 16)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("failed to fetch bus messages", zap.Error(err))
		}
		return
	}

	for _, m := range append(batch, msgs...) {
		switch m.Topic {
		case bus.TopicSchedule:
			var cmd bus.ScheduleCommand
			if err := m.Decode(&cmd); err != nil {
				c.logger.Error("dropping bad schedule command", zap.Error(err))
				break
			}
			c.Schedule(ctx, cmd.JobID, cmd.StartTime, cmd.EndTime)
		case bus.TopicCancel:
			var cmd bus.CancelCommand
			if err := m.Decode(&cmd); err != nil {
				c.logger.Error("dropping bad cancel command", zap.Error(err))
				break
			}
			c.CancelJob(cmd.JobID)
		}
		c.bus.Ack(ctx, bus.GroupScheduler, m)
	}
}

// catchOverdue starts SCHEDULED jobs whose start_time passed within the
// grace window: covers timers that were lost or never armed.
func (c *Coordinator) catchOverdue(ctx context.Context, now time.Time) {
	due, err := c.store.FindDueScheduled(ctx, now, c.tuning.GraceWindow)
	if err != nil {
		c.logger.Warn("overdue scan failed", zap.Error(err))
		return
	}
	for _, job := range due {
		c.logger.Info("starting overdue job",
			zap.Int64("job_id", job.ID), zap.String("name", job.Name))
		c.Start(ctx, job.ID)
	}
}

// napUntilNextDeadline returns how long the loop may sleep: until the next
// armed timer, capped by the poll interval so message drains stay timely.
func (c *Coordinator) napUntilNextDeadline() time.Duration {
	nap := c.tuning.PollInterval
	if deadline, ok := c.timers.NextDeadline(); ok {
		if until := deadline.Sub(c.now()); until < nap {
			nap = until
		}
	}
	if nap < 0 {
		return 0
	}
	return nap
}
