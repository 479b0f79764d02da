package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"radiorec/internal/app/model"
	"radiorec/internal/app/repository"
)

func (sdb *SQLiteDB) GetStation(ctx context.Context, id int64) (*model.Station, error) {
	var s model.Station
	err := sdb.db.QueryRowContext(ctx, `
		SELECT id, name, stream_url, format, bitrate, sample_rate, channels,
			is_valid, created_at, updated_at
		FROM stations WHERE id = ?`, id).
		Scan(&s.ID, &s.Name, &s.StreamURL, &s.Format, &s.Bitrate,
			&s.SampleRate, &s.Channels, &s.IsValid, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get station %d: %w", id, err)
	}
	return &s, nil
}

// InsertStation registers a stream source. Used by the CLI and by tests.
func (sdb *SQLiteDB) InsertStation(ctx context.Context, s *model.Station) (int64, error) {
	now := time.Now().UTC()
	res, err := sdb.db.ExecContext(ctx, `
		INSERT INTO stations (name, stream_url, format, bitrate, sample_rate,
			channels, is_valid, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.Name, s.StreamURL, s.Format, s.Bitrate, s.SampleRate, s.Channels,
		s.IsValid, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert station: %w", err)
	}
	return res.LastInsertId()
}

func (sdb *SQLiteDB) CreateEpisodeIfAbsent(ctx context.Context, ep *model.PodcastEpisode) (bool, error) {
	now := time.Now().UTC()
	// job_id is UNIQUE; OR IGNORE turns a duplicate completion into a no-op.
	res, err := sdb.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO podcast_episodes (podcast_id, job_id, title,
			description, episode_number, season_number, pub_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.PodcastID, ep.JobID, ep.Title, ep.Description, ep.EpisodeNumber,
		ep.SeasonNumber, ep.PubDate.UTC(), now, now)
	if err != nil {
		return false, fmt.Errorf("failed to create episode: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (sdb *SQLiteDB) GetEpisodeByJob(ctx context.Context, jobID int64) (*model.PodcastEpisode, error) {
	var ep model.PodcastEpisode
	err := sdb.db.QueryRowContext(ctx, `
		SELECT id, podcast_id, job_id, title, description, episode_number,
			season_number, pub_date, created_at, updated_at
		FROM podcast_episodes WHERE job_id = ?`, jobID).
		Scan(&ep.ID, &ep.PodcastID, &ep.JobID, &ep.Title, &ep.Description,
			&ep.EpisodeNumber, &ep.SeasonNumber, &ep.PubDate, &ep.CreatedAt, &ep.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode for job %d: %w", jobID, err)
	}
	return &ep, nil
}
