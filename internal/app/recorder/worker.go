// Package recorder is the capture worker: it executes one bounded-duration
// capture per job, finalizes the job's terminal status, and chains the
// downstream effects (completion event, podcast episode, next recurring
// instance) exactly once.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"radiorec/internal/app/bus"
	"radiorec/internal/app/metrics"
	"radiorec/internal/app/model"
	"radiorec/internal/app/recurrence"
	"radiorec/internal/app/repository"
)

// stderrLimit bounds the diagnostic persisted from a failed capture.
const stderrLimit = 200

// MessageBus is the slice of the bus the worker uses.
type MessageBus interface {
	Publish(ctx context.Context, topic string, payload any) error
	EnsureGroup(ctx context.Context, group string, topics ...string) error
	Fetch(ctx context.Context, group, consumer string, topics []string, block time.Duration, count int64) ([]bus.Message, error)
	ClaimStale(ctx context.Context, group, consumer, topic string, count int64) ([]bus.Message, error)
	Ack(ctx context.Context, group string, msgs ...bus.Message)
}

// activeCapture is one tracked in-flight capture. The table of these is
// owned by the worker's control goroutine: entries are inserted when a
// start command is accepted and removed when its result is handled. A
// crashed worker never removes entries; the coordinator's reconciliation
// resolves those jobs instead.
type activeCapture struct {
	job        *model.Job
	outputPath string
	startedAt  time.Time
}

// Worker consumes start/stop commands and runs captures. All shared state
// is confined to the control goroutine running Run; each capture executes
// on its own goroutine around an independent child process, so concurrent
// captures never block command handling.
type Worker struct {
	store         repository.Store
	bus           MessageBus
	runner        Runner
	recordingsDir string
	logger        *zap.Logger
	consumer      string

	active  map[int64]*activeCapture
	results chan CaptureResult

	busReady    atomic.Bool
	activeCount atomic.Int32

	now func() time.Time
}

func NewWorker(store repository.Store, mbus MessageBus, runner Runner, recordingsDir string, logger *zap.Logger) *Worker {
	return &Worker{
		store:         store,
		bus:           mbus,
		runner:        runner,
		recordingsDir: recordingsDir,
		logger:        logger,
		consumer:      "recorder-" + uuid.NewString(),
		active:        make(map[int64]*activeCapture),
		results:       make(chan CaptureResult),
		now:           time.Now,
	}
}

// Ready reports whether the bus subscription is established. Exposed on the
// worker's health endpoint; the coordinator probes it before publishing a
// start command.
func (w *Worker) Ready() bool { return w.busReady.Load() }

// ActiveCaptures counts captures currently running.
func (w *Worker) ActiveCaptures() int { return int(w.activeCount.Load()) }

// Run executes the worker control loop until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.bus.EnsureGroup(ctx, bus.GroupRecorder, bus.TopicStart, bus.TopicStop); err != nil {
		return fmt.Errorf("failed to set up recorder queues: %w", err)
	}
	w.busReady.Store(true)

	msgs := make(chan bus.Message)
	go w.consumeLoop(ctx, msgs)

	w.logger.Info("capture worker running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-msgs:
			w.handleMessage(ctx, m)
			w.bus.Ack(ctx, bus.GroupRecorder, m)
		case res := <-w.results:
			w.onComplete(ctx, res)
		}
	}
}

// consumeLoop feeds bus deliveries to the control loop, reclaiming entries
// a dead worker left pending first.
func (w *Worker) consumeLoop(ctx context.Context, msgs chan<- bus.Message) {
	topics := []string{bus.TopicStart, bus.TopicStop}
	for ctx.Err() == nil {
		var batch []bus.Message
		for _, topic := range topics {
			claimed, err := w.bus.ClaimStale(ctx, bus.GroupRecorder, w.consumer, topic, 16)
			if err != nil && ctx.Err() == nil {
				w.logger.Warn("stale claim failed", zap.String("topic", topic), zap.Error(err))
			}
			batch = append(batch, claimed...)
		}

		fetched, err := w.bus.Fetch(ctx, bus.GroupRecorder, w.consumer, topics, 2*time.Second, 16)
		if err != nil {
			if ctx.Err() == nil {
				w.logger.Warn("fetch failed", zap.Error(err))
				time.Sleep(time.Second)
			}
			continue
		}
		batch = append(batch, fetched...)

		for _, m := range batch {
			select {
			case msgs <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, m bus.Message) {
	switch m.Topic {
	case bus.TopicStart:
		var cmd bus.StartCommand
		if err := m.Decode(&cmd); err != nil {
			w.logger.Error("dropping bad start command", zap.Error(err))
			return
		}
		w.onStart(ctx, cmd)
	case bus.TopicStop:
		var cmd bus.StopCommand
		if err := m.Decode(&cmd); err != nil {
			w.logger.Error("dropping bad stop command", zap.Error(err))
			return
		}
		// Advisory only: the capture terminates on the deadline computed
		// at start time.
		w.logger.Info("stop signal received", zap.Int64("job_id", cmd.JobID))
	}
}

// onStart validates a start command and launches the capture process.
// RECORDING was already persisted by the coordinator, so every rejection
// after this point must resolve the job to FAILED rather than leave it
// stuck.
func (w *Worker) onStart(ctx context.Context, cmd bus.StartCommand) {
	if _, dup := w.active[cmd.JobID]; dup {
		w.logger.Warn("job already capturing, ignoring duplicate start",
			zap.Int64("job_id", cmd.JobID))
		return
	}

	job, err := w.store.GetJob(ctx, cmd.JobID)
	if errors.Is(err, repository.ErrNotFound) {
		w.logger.Warn("job vanished before capture", zap.Int64("job_id", cmd.JobID))
		return
	}
	if err != nil {
		w.logger.Error("failed to read job", zap.Int64("job_id", cmd.JobID), zap.Error(err))
		return
	}
	if job.State.Phase != model.PhaseRecording {
		w.logger.Warn("job not in RECORDING, ignoring start",
			zap.Int64("job_id", job.ID), zap.String("phase", string(job.State.Phase)))
		return
	}

	station, err := w.store.GetStation(ctx, job.StationID)
	if err != nil || !station.IsValid {
		w.failJob(ctx, job, "invalid station")
		metrics.StartFailuresTotal.WithLabelValues("station").Inc()
		return
	}

	now := w.now()
	remaining := job.Remaining(now)
	if remaining <= 0 {
		w.failJob(ctx, job, "capture window already closed")
		metrics.StartFailuresTotal.WithLabelValues("window").Inc()
		return
	}

	if err := os.MkdirAll(w.recordingsDir, 0o755); err != nil {
		w.failJob(ctx, job, "cannot create recordings directory")
		return
	}
	outputPath := filepath.Join(w.recordingsDir,
		fmt.Sprintf("%s%s.%s", job.Name, now.Format("060102-Mon"), job.Format))

	req := CaptureRequest{
		JobID:      job.ID,
		StreamURL:  station.StreamURL,
		OutputPath: outputPath,
		Duration:   remaining,
		Copy:       job.Format == station.Format,
		Codec:      codecFor(job.Format),
		Bitrate:    job.Bitrate,
	}

	w.active[job.ID] = &activeCapture{job: job, outputPath: outputPath, startedAt: now}
	w.activeCount.Store(int32(len(w.active)))
	metrics.ActiveCaptures.Set(float64(len(w.active)))
	metrics.CapturesStartedTotal.Inc()

	w.logger.Info("starting capture",
		zap.Int64("job_id", job.ID),
		zap.String("name", job.Name),
		zap.String("output", outputPath),
		zap.Duration("duration", remaining))

	go func() {
		res := w.runner.Run(req)
		select {
		case w.results <- res:
		case <-ctx.Done():
		}
	}()
}

// onComplete finalizes a finished capture. The terminal state and output
// fields are committed before any notification; a publish failure never
// reverts them.
func (w *Worker) onComplete(ctx context.Context, res CaptureResult) {
	ac, ok := w.active[res.JobID]
	if !ok {
		w.logger.Warn("result for untracked capture", zap.Int64("job_id", res.JobID))
		return
	}
	delete(w.active, res.JobID)
	w.activeCount.Store(int32(len(w.active)))
	metrics.ActiveCaptures.Set(float64(len(w.active)))

	// Re-read: reconciliation may have tagged the job interrupted (or even
	// resolved it) while the capture ran.
	job, err := w.store.GetJob(ctx, res.JobID)
	if err != nil {
		w.logger.Error("failed to read job after capture",
			zap.Int64("job_id", res.JobID), zap.Error(err))
		return
	}

	size, exists := fileSize(res.OutputPath)

	var final model.JobState
	if res.Err == nil && exists {
		final, err = job.State.Succeed()
	} else {
		final, err = job.State.Fail(captureDiagnostic(res))
	}
	if err != nil {
		w.logger.Warn("job already resolved, dropping capture result",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}

	filePath := ""
	if exists {
		filePath = res.OutputPath
	}
	if err := w.store.UpdateJobOutput(ctx, job.ID, final, filePath, size); err != nil {
		w.logger.Error("failed to persist capture outcome",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.CapturesFinishedTotal.WithLabelValues(string(final.Phase)).Inc()
	w.logger.Info("capture finalized",
		zap.Int64("job_id", job.ID),
		zap.String("status", string(final.Phase)),
		zap.Int64("file_size", size),
		zap.Duration("elapsed", w.now().Sub(ac.startedAt)))

	// Status is durable; everything below is best-effort chaining.
	event := bus.CompletedEvent{
		JobID:    job.ID,
		Status:   string(final.Phase),
		Size:     size,
		Duration: job.DurationSeconds,
	}
	if err := w.bus.Publish(ctx, bus.TopicCompleted, event); err != nil {
		w.logger.Error("failed to publish completion event (status already saved)",
			zap.Int64("job_id", job.ID), zap.Error(err))
	}

	if job.PodcastID != nil && (final.Phase == model.PhaseComplete || final.Phase == model.PhasePartial) {
		w.createEpisode(ctx, job)
	}

	w.chainRecurrence(ctx, job)
}

// createEpisode publishes the capture to its podcast feed. Keyed by job id,
// so a duplicated completion is a no-op.
func (w *Worker) createEpisode(ctx context.Context, job *model.Job) {
	ep := &model.PodcastEpisode{
		PodcastID:    *job.PodcastID,
		JobID:        job.ID,
		Title:        job.Name,
		Description:  model.EpisodeDescription(job.Name, job.StartTime),
		SeasonNumber: 1,
		PubDate:      w.now(),
	}
	created, err := w.store.CreateEpisodeIfAbsent(ctx, ep)
	if err != nil {
		w.logger.Error("failed to create episode",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	if !created {
		w.logger.Info("episode already exists", zap.Int64("job_id", job.ID))
		return
	}
	metrics.EpisodesCreatedTotal.Inc()
	w.logger.Info("created podcast episode",
		zap.Int64("job_id", job.ID), zap.Int64("podcast_id", *job.PodcastID))
}

// chainRecurrence generates the next instance of the job's series, if it
// belongs to one. Shares the conditional insert with the coordinator's
// periodic sweep, so the two triggers racing create at most one instance.
func (w *Worker) chainRecurrence(ctx context.Context, job *model.Job) {
	template, err := w.store.FindTemplateFor(ctx, job.Name, job.StationID)
	if errors.Is(err, repository.ErrNotFound) {
		return // not part of a recurring series
	}
	if err != nil {
		w.logger.Error("template lookup failed",
			zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}

	next, err := recurrence.Next(job.StartTime, template.RecurrenceType)
	if err != nil {
		w.logger.Error("bad recurrence template",
			zap.Int64("template_id", template.ID), zap.Error(err))
		return
	}

	if template.RecurrenceEnd != nil && next.After(*template.RecurrenceEnd) {
		w.logger.Info("recurring series reached its end date",
			zap.String("series", template.Name))
		return
	}

	created, err := w.store.InsertInstanceIfAbsent(ctx, template.NextInstance(next))
	if err != nil {
		w.logger.Error("failed to insert next recurring instance",
			zap.String("series", template.Name), zap.Error(err))
		return
	}
	if created {
		metrics.RecurrenceInstancesTotal.WithLabelValues("completion").Inc()
		w.logger.Info("scheduled next recurring instance",
			zap.String("series", template.Name), zap.Time("start", next))
	}
}

func (w *Worker) failJob(ctx context.Context, job *model.Job, reason string) {
	failed, err := job.State.Fail(reason)
	if err != nil {
		w.logger.Error("cannot fail job", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	if err := w.store.UpdateJobState(ctx, job.ID, failed); err != nil {
		w.logger.Error("failed to persist FAILED", zap.Int64("job_id", job.ID), zap.Error(err))
		return
	}
	w.logger.Error("capture rejected", zap.Int64("job_id", job.ID), zap.String("reason", reason))
}

func captureDiagnostic(res CaptureResult) string {
	msg := "capture process failed"
	if res.Stderr != "" {
		msg = res.Stderr
	} else if res.Err != nil {
		msg = res.Err.Error()
	}
	if len(msg) > stderrLimit {
		msg = msg[:stderrLimit]
	}
	return msg
}

func fileSize(path string) (int64, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}
