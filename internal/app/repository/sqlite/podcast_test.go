package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiorec/internal/app/model"
	"radiorec/internal/app/repository"
)

func TestSQLiteDB_InsertAndGetStation(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.InsertStation(ctx, &model.Station{
		Name:      "Radio One",
		StreamURL: "http://example.com/stream",
		Format:    "mp3",
		Bitrate:   192,
		IsValid:   true,
	})
	require.NoError(t, err)

	got, err := db.GetStation(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Radio One", got.Name)
	assert.Equal(t, "http://example.com/stream", got.StreamURL)
	assert.True(t, got.IsValid)

	_, err = db.GetStation(ctx, id+1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSQLiteDB_CreateEpisodeIfAbsent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	ep := &model.PodcastEpisode{
		PodcastID:    1,
		JobID:        42,
		Title:        "Morning Show",
		Description:  "Morning Show, recorded on Tuesday, 10th of March 2026 at 08:00",
		SeasonNumber: 1,
		PubDate:      time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC),
	}

	created, err := db.CreateEpisodeIfAbsent(ctx, ep)
	require.NoError(t, err)
	assert.True(t, created)

	// Same job id again is a no-op.
	created, err = db.CreateEpisodeIfAbsent(ctx, ep)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := db.GetEpisodeByJob(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Morning Show", got.Title)
	assert.Equal(t, 1, got.SeasonNumber)

	_, err = db.GetEpisodeByJob(ctx, 43)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
