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

const jobColumns = `id, name, station_id, podcast_id, start_time, end_time,
	duration_seconds, status, interrupted, reason, file_path, file_size,
	format, bitrate, is_recurring, recurrence_type, recurrence_end,
	local_storage_status, remote_storage_status, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (*model.Job, error) {
	var (
		j             model.Job
		podcastID     sql.NullInt64
		recurrenceEnd sql.NullTime
	)
	err := row.Scan(&j.ID, &j.Name, &j.StationID, &podcastID, &j.StartTime,
		&j.EndTime, &j.DurationSeconds, &j.State.Phase, &j.State.Interrupted,
		&j.State.Reason, &j.FilePath, &j.FileSize, &j.Format, &j.Bitrate,
		&j.IsRecurring, &j.RecurrenceType, &recurrenceEnd, &j.LocalStorage,
		&j.RemoteStorage, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if podcastID.Valid {
		j.PodcastID = &podcastID.Int64
	}
	if recurrenceEnd.Valid {
		t := recurrenceEnd.Time
		j.RecurrenceEnd = &t
	}
	return &j, nil
}

func (pdb *PostgresDB) queryJobs(ctx context.Context, query string, args ...any) ([]*model.Job, error) {
	rows, err := pdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	jobs := make([]*model.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("db scan failed: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (pdb *PostgresDB) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	row := pdb.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return j, err
}

func (pdb *PostgresDB) InsertJob(ctx context.Context, job *model.Job) (int64, error) {
	var podcastID any
	if job.PodcastID != nil {
		podcastID = *job.PodcastID
	}
	var recurrenceEnd any
	if job.RecurrenceEnd != nil {
		recurrenceEnd = job.RecurrenceEnd.UTC()
	}
	now := time.Now().UTC()
	var id int64
	err := pdb.db.QueryRowContext(ctx, `
		INSERT INTO jobs (name, station_id, podcast_id, start_time, end_time,
			duration_seconds, status, interrupted, reason, file_path, file_size,
			format, bitrate, is_recurring, recurrence_type, recurrence_end,
			local_storage_status, remote_storage_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20)
		RETURNING id`,
		job.Name, job.StationID, podcastID, job.StartTime.UTC(), job.EndTime.UTC(),
		job.DurationSeconds, job.State.Phase, job.State.Interrupted, job.State.Reason,
		job.FilePath, job.FileSize, job.Format, job.Bitrate, job.IsRecurring,
		job.RecurrenceType, recurrenceEnd, job.LocalStorage, job.RemoteStorage,
		now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}
	return id, nil
}

func (pdb *PostgresDB) UpdateJobState(ctx context.Context, id int64, state model.JobState) error {
	_, err := pdb.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, interrupted = $2, reason = $3, updated_at = $4
		WHERE id = $5`,
		state.Phase, state.Interrupted, state.Reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update job %d state: %w", id, err)
	}
	return nil
}

func (pdb *PostgresDB) UpdateJobOutput(ctx context.Context, id int64, state model.JobState, filePath string, fileSize int64) error {
	_, err := pdb.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, interrupted = $2, reason = $3,
			file_path = $4, file_size = $5, updated_at = $6
		WHERE id = $7`,
		state.Phase, state.Interrupted, state.Reason, filePath, fileSize,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update job %d output: %w", id, err)
	}
	return nil
}

func (pdb *PostgresDB) UpdateRemoteStorage(ctx context.Context, id int64, status string) error {
	_, err := pdb.db.ExecContext(ctx, `
		UPDATE jobs SET remote_storage_status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update job %d remote storage: %w", id, err)
	}
	return nil
}

func (pdb *PostgresDB) UpdateLocalStorage(ctx context.Context, id int64, status string) error {
	_, err := pdb.db.ExecContext(ctx, `
		UPDATE jobs SET local_storage_status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update job %d local storage: %w", id, err)
	}
	return nil
}

func (pdb *PostgresDB) FindActiveWindow(ctx context.Context, now time.Time) ([]*model.Job, error) {
	return pdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = FALSE
		  AND status IN ('SCHEDULED', 'RECORDING')
		  AND start_time <= $1 AND end_time > $1
		ORDER BY start_time`,
		now.UTC())
}

func (pdb *PostgresDB) FindAbandoned(ctx context.Context, now time.Time, lookback time.Duration) ([]*model.Job, error) {
	return pdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = FALSE
		  AND status = 'RECORDING'
		  AND end_time <= $1 AND end_time >= $2
		ORDER BY start_time`,
		now.UTC(), now.Add(-lookback).UTC())
}

func (pdb *PostgresDB) FindDueScheduled(ctx context.Context, now time.Time, grace time.Duration) ([]*model.Job, error) {
	return pdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = FALSE
		  AND status = 'SCHEDULED'
		  AND start_time <= $1 AND start_time >= $2
		ORDER BY start_time`,
		now.UTC(), now.Add(-grace).UTC())
}

func (pdb *PostgresDB) FindJobHistory(ctx context.Context, since time.Time) ([]*model.Job, error) {
	return pdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = FALSE AND start_time >= $1
		ORDER BY start_time DESC`,
		since.UTC())
}

func (pdb *PostgresDB) FindTemplates(ctx context.Context) ([]*model.Job, error) {
	return pdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = TRUE
		ORDER BY start_time`)
}

func (pdb *PostgresDB) FindTemplateFor(ctx context.Context, name string, stationID int64) (*model.Job, error) {
	row := pdb.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = TRUE AND name = $1 AND station_id = $2
		LIMIT 1`,
		name, stationID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return j, err
}

func (pdb *PostgresDB) FindLatestInstance(ctx context.Context, name string, stationID int64) (*model.Job, error) {
	row := pdb.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = FALSE AND name = $1 AND station_id = $2
		ORDER BY start_time DESC
		LIMIT 1`,
		name, stationID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return j, err
}

func (pdb *PostgresDB) InsertInstanceIfAbsent(ctx context.Context, job *model.Job) (bool, error) {
	var podcastID any
	if job.PodcastID != nil {
		podcastID = *job.PodcastID
	}
	now := time.Now().UTC()
	res, err := pdb.db.ExecContext(ctx, `
		INSERT INTO jobs (name, station_id, podcast_id, start_time, end_time,
			duration_seconds, status, interrupted, reason, file_path, file_size,
			format, bitrate, is_recurring, recurrence_type, recurrence_end,
			local_storage_status, remote_storage_status, created_at, updated_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, FALSE, '', '', 0, $8, $9, FALSE,
			'', NULL, $10, $11, $12, $13
		WHERE NOT EXISTS (
			SELECT 1 FROM jobs
			WHERE name = $1 AND station_id = $2 AND start_time = $4 AND is_recurring = FALSE
		)`,
		job.Name, job.StationID, podcastID, job.StartTime.UTC(), job.EndTime.UTC(),
		job.DurationSeconds, model.PhaseScheduled,
		job.Format, job.Bitrate, model.StoragePending, model.StoragePending,
		now, now)
	if err != nil {
		return false, fmt.Errorf("failed conditional insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
