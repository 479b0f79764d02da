package recorder

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"radiorec/internal/app/bus"
	"radiorec/internal/app/model"
	"radiorec/internal/app/repository"
)

// fakeStore is an in-memory repository.Store.
type fakeStore struct {
	jobs      map[int64]*model.Job
	stations  map[int64]*model.Station
	episodes  []*model.PodcastEpisode
	templates []*model.Job
	inserted  []*model.Job
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:     make(map[int64]*model.Job),
		stations: make(map[int64]*model.Station),
	}
}

func (s *fakeStore) GetJob(_ context.Context, id int64) (*model.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *j
	return &copied, nil
}

func (s *fakeStore) InsertJob(_ context.Context, job *model.Job) (int64, error) {
	id := int64(len(s.jobs) + 1)
	job.ID = id
	s.jobs[id] = job
	return id, nil
}

func (s *fakeStore) UpdateJobState(_ context.Context, id int64, state model.JobState) error {
	j, ok := s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.State = state
	return nil
}

func (s *fakeStore) UpdateJobOutput(_ context.Context, id int64, state model.JobState, filePath string, fileSize int64) error {
	j, ok := s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.State = state
	j.FilePath = filePath
	j.FileSize = fileSize
	return nil
}

func (s *fakeStore) UpdateRemoteStorage(_ context.Context, id int64, status string) error {
	j, ok := s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.RemoteStorage = status
	return nil
}

func (s *fakeStore) UpdateLocalStorage(_ context.Context, id int64, status string) error {
	j, ok := s.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.LocalStorage = status
	return nil
}

func (s *fakeStore) FindActiveWindow(context.Context, time.Time) ([]*model.Job, error) {
	return nil, nil
}

func (s *fakeStore) FindAbandoned(context.Context, time.Time, time.Duration) ([]*model.Job, error) {
	return nil, nil
}

func (s *fakeStore) FindDueScheduled(context.Context, time.Time, time.Duration) ([]*model.Job, error) {
	return nil, nil
}

func (s *fakeStore) FindJobHistory(context.Context, time.Time) ([]*model.Job, error) {
	return nil, nil
}

func (s *fakeStore) FindTemplates(context.Context) ([]*model.Job, error) {
	return s.templates, nil
}

func (s *fakeStore) FindTemplateFor(_ context.Context, name string, stationID int64) (*model.Job, error) {
	for _, t := range s.templates {
		if t.Name == name && t.StationID == stationID {
			return t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *fakeStore) FindLatestInstance(context.Context, string, int64) (*model.Job, error) {
	return nil, repository.ErrNotFound
}

func (s *fakeStore) InsertInstanceIfAbsent(_ context.Context, job *model.Job) (bool, error) {
	for _, existing := range s.inserted {
		if existing.Name == job.Name && existing.StationID == job.StationID &&
			existing.StartTime.Equal(job.StartTime) {
			return false, nil
		}
	}
	s.inserted = append(s.inserted, job)
	return true, nil
}

func (s *fakeStore) GetStation(_ context.Context, id int64) (*model.Station, error) {
	st, ok := s.stations[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return st, nil
}

func (s *fakeStore) InsertStation(_ context.Context, station *model.Station) (int64, error) {
	id := int64(len(s.stations) + 1)
	station.ID = id
	s.stations[id] = station
	return id, nil
}

func (s *fakeStore) CreateEpisodeIfAbsent(_ context.Context, ep *model.PodcastEpisode) (bool, error) {
	for _, existing := range s.episodes {
		if existing.JobID == ep.JobID {
			return false, nil
		}
	}
	s.episodes = append(s.episodes, ep)
	return true, nil
}

func (s *fakeStore) GetEpisodeByJob(_ context.Context, jobID int64) (*model.PodcastEpisode, error) {
	for _, ep := range s.episodes {
		if ep.JobID == jobID {
			return ep, nil
		}
	}
	return nil, repository.ErrNotFound
}

// fakeWorkerBus records publishes; Fetch and ClaimStale return nothing.
type fakeWorkerBus struct {
	published  []bus.CompletedEvent
	publishErr error
}

func (b *fakeWorkerBus) Publish(_ context.Context, topic string, payload any) error {
	if b.publishErr != nil {
		return b.publishErr
	}
	if topic == bus.TopicCompleted {
		b.published = append(b.published, payload.(bus.CompletedEvent))
	}
	return nil
}

func (b *fakeWorkerBus) EnsureGroup(context.Context, string, ...string) error { return nil }

func (b *fakeWorkerBus) Fetch(context.Context, string, string, []string, time.Duration, int64) ([]bus.Message, error) {
	return nil, nil
}

func (b *fakeWorkerBus) ClaimStale(context.Context, string, string, string, int64) ([]bus.Message, error) {
	return nil, nil
}

func (b *fakeWorkerBus) Ack(context.Context, string, ...bus.Message) {}

// fakeRunner optionally writes output and returns a canned result.
type fakeRunner struct {
	requests []CaptureRequest
	fail     bool
	stderr   string
	output   []byte
}

func (r *fakeRunner) Run(req CaptureRequest) CaptureResult {
	r.requests = append(r.requests, req)
	res := CaptureResult{JobID: req.JobID, OutputPath: req.OutputPath, Stderr: r.stderr}
	if r.fail {
		res.Err = errors.New("exit status 1")
		return res
	}
	if err := os.WriteFile(req.OutputPath, r.output, 0o644); err != nil {
		res.Err = err
	}
	return res
}

var testNow = time.Date(2026, time.March, 14, 8, 0, 0, 0, time.UTC)

func testWorker(t *testing.T, store *fakeStore, mbus MessageBus, runner Runner) *Worker {
	t.Helper()
	w := NewWorker(store, mbus, runner, t.TempDir(), zap.NewNop())
	w.now = func() time.Time { return testNow }
	return w
}

func recordingJob(id int64) *model.Job {
	start := testNow.Add(-time.Minute)
	end := testNow.Add(30 * time.Minute)
	return &model.Job{
		ID:              id,
		Name:            "morning-show",
		StationID:       7,
		StartTime:       start,
		EndTime:         end,
		DurationSeconds: int(end.Sub(start).Seconds()),
		State:           model.JobState{Phase: model.PhaseRecording},
		Format:          "mp3",
	}
}

func validStation() *model.Station {
	return &model.Station{ID: 7, Name: "Radio One", StreamURL: "http://example.com/stream", Format: "mp3", IsValid: true}
}

func startCommandFor(job *model.Job) bus.StartCommand {
	return bus.StartCommand{
		JobID:     job.ID,
		StationID: job.StationID,
		Name:      job.Name,
		Format:    job.Format,
		Bitrate:   job.Bitrate,
		EndTime:   job.EndTime,
	}
}

// runCapture drives one start command through capture and completion.
func runCapture(t *testing.T, w *Worker, job *model.Job) {
	t.Helper()
	w.onStart(context.Background(), startCommandFor(job))
	select {
	case res := <-w.results:
		w.onComplete(context.Background(), res)
	case <-time.After(5 * time.Second):
		t.Fatal("capture result never arrived")
	}
}

func TestWorker_CaptureCompletes(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	store.jobs[1] = job
	store.stations[7] = validStation()
	mbus := &fakeWorkerBus{}
	runner := &fakeRunner{output: []byte("audio bytes")}
	w := testWorker(t, store, mbus, runner)

	runCapture(t, w, job)

	require.Len(t, runner.requests, 1)
	assert.True(t, runner.requests[0].Copy)
	assert.True(t, strings.HasSuffix(runner.requests[0].OutputPath, "morning-show260314-Sat.mp3"))

	assert.Equal(t, model.PhaseComplete, store.jobs[1].State.Phase)
	assert.Equal(t, int64(len("audio bytes")), store.jobs[1].FileSize)
	assert.NotEmpty(t, store.jobs[1].FilePath)
	assert.Equal(t, 0, w.ActiveCaptures())

	require.Len(t, mbus.published, 1)
	assert.Equal(t, string(model.PhaseComplete), mbus.published[0].Status)
}

func TestWorker_ReencodeWhenFormatsDiffer(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	job.Format = "m4a"
	job.Bitrate = 128
	store.jobs[1] = job
	station := validStation()
	station.Format = "mp3"
	store.stations[7] = station
	runner := &fakeRunner{output: []byte("x")}
	w := testWorker(t, store, &fakeWorkerBus{}, runner)

	runCapture(t, w, job)

	require.Len(t, runner.requests, 1)
	assert.False(t, runner.requests[0].Copy)
	assert.Equal(t, "aac", runner.requests[0].Codec)
	assert.Equal(t, 128, runner.requests[0].Bitrate)
}

func TestWorker_DuplicateStartIgnored(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	store.jobs[1] = job
	store.stations[7] = validStation()
	runner := &fakeRunner{output: []byte("x")}
	w := testWorker(t, store, &fakeWorkerBus{}, runner)

	w.onStart(context.Background(), startCommandFor(job))
	w.onStart(context.Background(), startCommandFor(job))

	<-w.results
	assert.Len(t, runner.requests, 1)
	assert.Equal(t, 1, w.ActiveCaptures())
}

func TestWorker_RejectsClosedWindow(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	job.EndTime = testNow.Add(-time.Minute)
	store.jobs[1] = job
	store.stations[7] = validStation()
	runner := &fakeRunner{}
	w := testWorker(t, store, &fakeWorkerBus{}, runner)

	w.onStart(context.Background(), startCommandFor(job))

	assert.Empty(t, runner.requests)
	assert.Equal(t, model.PhaseFailed, store.jobs[1].State.Phase)
	assert.Equal(t, "capture window already closed", store.jobs[1].State.Reason)
}

func TestWorker_RejectsInvalidStation(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	store.jobs[1] = job
	station := validStation()
	station.IsValid = false
	store.stations[7] = station
	runner := &fakeRunner{}
	w := testWorker(t, store, &fakeWorkerBus{}, runner)

	w.onStart(context.Background(), startCommandFor(job))

	assert.Empty(t, runner.requests)
	assert.Equal(t, model.PhaseFailed, store.jobs[1].State.Phase)
	assert.Equal(t, "invalid station", store.jobs[1].State.Reason)
}

func TestWorker_IgnoresStartForNonRecordingJob(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	job.State = model.JobState{Phase: model.PhaseCancelled}
	store.jobs[1] = job
	store.stations[7] = validStation()
	runner := &fakeRunner{}
	w := testWorker(t, store, &fakeWorkerBus{}, runner)

	w.onStart(context.Background(), startCommandFor(job))

	assert.Empty(t, runner.requests)
	assert.Equal(t, model.PhaseCancelled, store.jobs[1].State.Phase)
}

func TestWorker_FailedCaptureTruncatesStderr(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	store.jobs[1] = job
	store.stations[7] = validStation()
	runner := &fakeRunner{fail: true, stderr: strings.Repeat("x", 500)}
	w := testWorker(t, store, &fakeWorkerBus{}, runner)

	runCapture(t, w, job)

	assert.Equal(t, model.PhaseFailed, store.jobs[1].State.Phase)
	assert.Len(t, store.jobs[1].State.Reason, stderrLimit)
	assert.Empty(t, store.jobs[1].FilePath)
}

func TestWorker_PublishFailureDoesNotRevertStatus(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	podcastID := int64(3)
	job.PodcastID = &podcastID
	store.jobs[1] = job
	store.stations[7] = validStation()
	mbus := &fakeWorkerBus{publishErr: errors.New("bus down")}
	w := testWorker(t, store, mbus, &fakeRunner{output: []byte("x")})

	runCapture(t, w, job)

	// The terminal status and the downstream effects survive the dead bus.
	assert.Equal(t, model.PhaseComplete, store.jobs[1].State.Phase)
	require.Len(t, store.episodes, 1)
	assert.Equal(t, int64(1), store.episodes[0].JobID)
}

func TestWorker_EpisodeCreatedOnceAcrossDuplicateCompletions(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	podcastID := int64(3)
	job.PodcastID = &podcastID
	store.jobs[1] = job
	store.stations[7] = validStation()
	w := testWorker(t, store, &fakeWorkerBus{}, &fakeRunner{output: []byte("x")})

	runCapture(t, w, job)
	require.Len(t, store.episodes, 1)
	assert.Contains(t, store.episodes[0].Description, "morning-show, recorded on")

	// A stray duplicate result is untracked and dropped.
	w.onComplete(context.Background(), CaptureResult{JobID: 1, OutputPath: store.jobs[1].FilePath})
	assert.Len(t, store.episodes, 1)
}

func TestWorker_CompletionChainsNextRecurringInstance(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	store.jobs[1] = job
	store.stations[7] = validStation()
	template := recordingJob(99)
	template.IsRecurring = true
	template.RecurrenceType = model.RecurrenceDaily
	template.State = model.Scheduled()
	store.templates = []*model.Job{template}
	w := testWorker(t, store, &fakeWorkerBus{}, &fakeRunner{output: []byte("x")})

	runCapture(t, w, job)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, job.StartTime.AddDate(0, 0, 1), store.inserted[0].StartTime)
	assert.Equal(t, model.PhaseScheduled, store.inserted[0].State.Phase)
}

func TestWorker_RecurrenceStopsAtSeriesEnd(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	store.jobs[1] = job
	store.stations[7] = validStation()
	template := recordingJob(99)
	template.IsRecurring = true
	template.RecurrenceType = model.RecurrenceDaily
	template.State = model.Scheduled()
	end := testNow.Add(2 * time.Hour)
	template.RecurrenceEnd = &end
	store.templates = []*model.Job{template}
	w := testWorker(t, store, &fakeWorkerBus{}, &fakeRunner{output: []byte("x")})

	runCapture(t, w, job)

	assert.Empty(t, store.inserted)
}

func TestWorker_NonSeriesJobChainsNothing(t *testing.T) {
	store := newFakeStore()
	job := recordingJob(1)
	store.jobs[1] = job
	store.stations[7] = validStation()
	w := testWorker(t, store, &fakeWorkerBus{}, &fakeRunner{output: []byte("x")})

	runCapture(t, w, job)

	assert.Empty(t, store.inserted)
}
