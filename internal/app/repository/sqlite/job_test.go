package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiorec/internal/app/model"
	"radiorec/internal/app/repository"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testJob(name string, start time.Time, duration time.Duration) *model.Job {
	return &model.Job{
		Name:            name,
		StationID:       1,
		StartTime:       start,
		EndTime:         start.Add(duration),
		DurationSeconds: int(duration.Seconds()),
		State:           model.Scheduled(),
		Format:          "mp3",
		Bitrate:         192,
		LocalStorage:    model.StoragePending,
		RemoteStorage:   model.StoragePending,
	}
}

func TestSQLiteDB_InsertAndGetJob(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	podcastID := int64(5)
	job := testJob("morning-show", start, time.Hour)
	job.PodcastID = &podcastID
	end := start.AddDate(0, 1, 0)
	job.RecurrenceEnd = &end

	id, err := db.InsertJob(ctx, job)
	require.NoError(t, err)
	require.NotZero(t, id)

	got, err := db.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "morning-show", got.Name)
	assert.Equal(t, int64(1), got.StationID)
	require.NotNil(t, got.PodcastID)
	assert.Equal(t, int64(5), *got.PodcastID)
	assert.True(t, start.Equal(got.StartTime))
	assert.True(t, start.Add(time.Hour).Equal(got.EndTime))
	require.NotNil(t, got.RecurrenceEnd)
	assert.True(t, end.Equal(*got.RecurrenceEnd))
	assert.Equal(t, model.PhaseScheduled, got.State.Phase)
	assert.False(t, got.State.Interrupted)
	assert.Equal(t, model.StoragePending, got.RemoteStorage)
}

func TestSQLiteDB_GetJobNotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetJob(context.Background(), 12345)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSQLiteDB_UpdateJobStateAndOutput(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	id, err := db.InsertJob(ctx, testJob("morning-show", start, time.Hour))
	require.NoError(t, err)

	recording := model.JobState{Phase: model.PhaseRecording, Interrupted: true}
	require.NoError(t, db.UpdateJobState(ctx, id, recording))

	got, err := db.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PhaseRecording, got.State.Phase)
	assert.True(t, got.State.Interrupted)

	final := model.JobState{Phase: model.PhasePartial, Interrupted: true, Reason: "interrupted"}
	require.NoError(t, db.UpdateJobOutput(ctx, id, final, "/tmp/morning-show.mp3", 2048))

	got, err = db.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.PhasePartial, got.State.Phase)
	assert.Equal(t, "interrupted", got.State.Reason)
	assert.Equal(t, "/tmp/morning-show.mp3", got.FilePath)
	assert.Equal(t, int64(2048), got.FileSize)

	require.NoError(t, db.UpdateRemoteStorage(ctx, id, model.StorageSuccess))
	require.NoError(t, db.UpdateLocalStorage(ctx, id, model.StorageFailed))
	got, err = db.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.StorageSuccess, got.RemoteStorage)
	assert.Equal(t, model.StorageFailed, got.LocalStorage)
}

func TestSQLiteDB_FindActiveWindow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	inside := testJob("inside", now.Add(-10*time.Minute), time.Hour)
	_, err := db.InsertJob(ctx, inside)
	require.NoError(t, err)

	past := testJob("past", now.Add(-3*time.Hour), time.Hour)
	_, err = db.InsertJob(ctx, past)
	require.NoError(t, err)

	future := testJob("future", now.Add(time.Hour), time.Hour)
	_, err = db.InsertJob(ctx, future)
	require.NoError(t, err)

	template := testJob("template", now.Add(-10*time.Minute), time.Hour)
	template.IsRecurring = true
	_, err = db.InsertJob(ctx, template)
	require.NoError(t, err)

	active, err := db.FindActiveWindow(ctx, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "inside", active[0].Name)
}

func TestSQLiteDB_FindAbandoned(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	recent := testJob("recent", now.Add(-70*time.Minute), time.Hour)
	recentID, err := db.InsertJob(ctx, recent)
	require.NoError(t, err)
	require.NoError(t, db.UpdateJobState(ctx, recentID, model.JobState{Phase: model.PhaseRecording}))

	old := testJob("old", now.Add(-5*time.Hour), time.Hour)
	oldID, err := db.InsertJob(ctx, old)
	require.NoError(t, err)
	require.NoError(t, db.UpdateJobState(ctx, oldID, model.JobState{Phase: model.PhaseRecording}))

	scheduled := testJob("scheduled", now.Add(-70*time.Minute), time.Hour)
	_, err = db.InsertJob(ctx, scheduled)
	require.NoError(t, err)

	abandoned, err := db.FindAbandoned(ctx, now, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	assert.Equal(t, "recent", abandoned[0].Name)
}

func TestSQLiteDB_FindDueScheduled(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	due := testJob("due", now.Add(-2*time.Second), time.Hour)
	_, err := db.InsertJob(ctx, due)
	require.NoError(t, err)

	tooOld := testJob("too-old", now.Add(-time.Minute), time.Hour)
	_, err = db.InsertJob(ctx, tooOld)
	require.NoError(t, err)

	future := testJob("future", now.Add(time.Minute), time.Hour)
	_, err = db.InsertJob(ctx, future)
	require.NoError(t, err)

	found, err := db.FindDueScheduled(ctx, now, 5*time.Second)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "due", found[0].Name)
}

func TestSQLiteDB_RecurrenceQueries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	template := testJob("series", start, time.Hour)
	template.IsRecurring = true
	template.RecurrenceType = model.RecurrenceDaily
	_, err := db.InsertJob(ctx, template)
	require.NoError(t, err)

	first := testJob("series", start.AddDate(0, 0, 1), time.Hour)
	_, err = db.InsertJob(ctx, first)
	require.NoError(t, err)
	second := testJob("series", start.AddDate(0, 0, 2), time.Hour)
	_, err = db.InsertJob(ctx, second)
	require.NoError(t, err)

	templates, err := db.FindTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, templates, 1)
	assert.Equal(t, model.RecurrenceDaily, templates[0].RecurrenceType)

	found, err := db.FindTemplateFor(ctx, "series", 1)
	require.NoError(t, err)
	assert.True(t, found.IsRecurring)

	_, err = db.FindTemplateFor(ctx, "unknown", 1)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	latest, err := db.FindLatestInstance(ctx, "series", 1)
	require.NoError(t, err)
	assert.True(t, second.StartTime.Equal(latest.StartTime))
	assert.False(t, latest.IsRecurring)
}

func TestSQLiteDB_InsertInstanceIfAbsentIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, time.March, 11, 8, 0, 0, 0, time.UTC)

	instance := testJob("series", start, time.Hour)

	created, err := db.InsertInstanceIfAbsent(ctx, instance)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = db.InsertInstanceIfAbsent(ctx, instance)
	require.NoError(t, err)
	assert.False(t, created)

	history, err := db.FindJobHistory(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assert.Equal(t, model.PhaseScheduled, history[0].State.Phase)
}

func TestSQLiteDB_FindJobHistoryNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	start := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := db.InsertJob(ctx, testJob("show", start.AddDate(0, 0, i), time.Hour))
		require.NoError(t, err)
	}
	template := testJob("show", start, time.Hour)
	template.IsRecurring = true
	_, err := db.InsertJob(ctx, template)
	require.NoError(t, err)

	history, err := db.FindJobHistory(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].StartTime.After(history[1].StartTime))
	assert.True(t, history[1].StartTime.After(history[2].StartTime))

	recent, err := db.FindJobHistory(ctx, start.AddDate(0, 0, 2))
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
