package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"radiorec/internal/app/model"
	"radiorec/internal/app/repository"
)

func (pdb *PostgresDB) GetStation(ctx context.Context, id int64) (*model.Station, error) {
	var s model.Station
	err := pdb.db.QueryRowContext(ctx, `
		SELECT id, name, stream_url, format, bitrate, sample_rate, channels,
			is_valid, created_at, updated_at
		FROM stations WHERE id = $1`, id).
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
func (pdb *PostgresDB) InsertStation(ctx context.Context, s *model.Station) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := pdb.db.QueryRowContext(ctx, `
		INSERT INTO stations (name, stream_url, format, bitrate, sample_rate,
			channels, is_valid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		s.Name, s.StreamURL, s.Format, s.Bitrate, s.SampleRate, s.Channels,
		s.IsValid, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert station: %w", err)
	}
	return id, nil
}

func (pdb *PostgresDB) CreateEpisodeIfAbsent(ctx context.Context, ep *model.PodcastEpisode) (bool, error) {
	now := time.Now().UTC()
	res, err := pdb.db.ExecContext(ctx, `
		INSERT INTO podcast_episodes (podcast_id, job_id, title, description,
			episode_number, season_number, pub_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (job_id) DO NOTHING`,
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

func (pdb *PostgresDB) GetEpisodeByJob(ctx context.Context, jobID int64) (*model.PodcastEpisode, error) {
	var ep model.PodcastEpisode
	err := pdb.db.QueryRowContext(ctx, `
		SELECT id, podcast_id, job_id, title, description, episode_number,
			season_number, pub_date, created_at, updated_at
		FROM podcast_episodes WHERE job_id = $1`, jobID).
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
