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

func (sdb *SQLiteDB) queryJobs(ctx context.Context, query string, args ...any) ([]*model.Job, error) {
	rows, err := sdb.db.QueryContext(ctx, query, args...)
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

func (sdb *SQLiteDB) GetJob(ctx context.Context, id int64) (*model.Job, error) {
	row := sdb.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return j, err
}

func (sdb *SQLiteDB) InsertJob(ctx context.Context, job *model.Job) (int64, error) {
	var podcastID any
	if job.PodcastID != nil {
		podcastID = *job.PodcastID
	}
	var recurrenceEnd any
	if job.RecurrenceEnd != nil {
		recurrenceEnd = job.RecurrenceEnd.UTC()
	}
	now := time.Now().UTC()
	res, err := sdb.db.ExecContext(ctx, `
		INSERT INTO jobs (name, station_id, podcast_id, start_time, end_time,
			duration_seconds, status, interrupted, reason, file_path, file_size,
			format, bitrate, is_recurring, recurrence_type, recurrence_end,
			local_storage_status, remote_storage_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.Name, job.StationID, podcastID, job.StartTime.UTC(), job.EndTime.UTC(),
		job.DurationSeconds, job.State.Phase, job.State.Interrupted, job.State.Reason,
		job.FilePath, job.FileSize, job.Format, job.Bitrate, job.IsRecurring,
		job.RecurrenceType, recurrenceEnd, job.LocalStorage, job.RemoteStorage,
		now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert job: %w", err)
	}
	return res.LastInsertId()
}

func (sdb *SQLiteDB) UpdateJobState(ctx context.Context, id int64, state model.JobState) error {
	_, err := sdb.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, interrupted = ?, reason = ?, updated_at = ?
		WHERE id = ?`,
		state.Phase, state.Interrupted, state.Reason, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update job %d state: %w", id, err)
	}
	return nil
}

func (sdb *SQLiteDB) UpdateJobOutput(ctx context.Context, id int64, state model.JobState, filePath string, fileSize int64) error {
	_, err := sdb.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, interrupted = ?, reason = ?,
			file_path = ?, file_size = ?, updated_at = ?
		WHERE id = ?`,
		state.Phase, state.Interrupted, state.Reason, filePath, fileSize,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update job %d output: %w", id, err)
	}
	return nil
}

func (sdb *SQLiteDB) UpdateRemoteStorage(ctx context.Context, id int64, status string) error {
	_, err := sdb.db.ExecContext(ctx, `
		UPDATE jobs SET remote_storage_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update job %d remote storage: %w", id, err)
	}
	return nil
}

func (sdb *SQLiteDB) UpdateLocalStorage(ctx context.Context, id int64, status string) error {
	_, err := sdb.db.ExecContext(ctx, `
		UPDATE jobs SET local_storage_status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update job %d local storage: %w", id, err)
	}
	return nil
}

func (sdb *SQLiteDB) FindActiveWindow(ctx context.Context, now time.Time) ([]*model.Job, error) {
	return sdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = 0
		  AND status IN ('SCHEDULED', 'RECORDING')
		  AND start_time <= ? AND end_time > ?
		ORDER BY start_time`,
		now.UTC(), now.UTC())
}

func (sdb *SQLiteDB) FindAbandoned(ctx context.Context, now time.Time, lookback time.Duration) ([]*model.Job, error) {
	return sdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = 0
		  AND status = 'RECORDING'
		  AND end_time <= ? AND end_time >= ?
		ORDER BY start_time`,
		now.UTC(), now.Add(-lookback).UTC())
}

func (sdb *SQLiteDB) FindDueScheduled(ctx context.Context, now time.Time, grace time.Duration) ([]*model.Job, error) {
	return sdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = 0
		  AND status = 'SCHEDULED'
		  AND start_time <= ? AND start_time >= ?
		ORDER BY start_time`,
		now.UTC(), now.Add(-grace).UTC())
}

func (sdb *SQLiteDB) FindJobHistory(ctx context.Context, since time.Time) ([]*model.Job, error) {
	return sdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = 0 AND start_time >= ?
		ORDER BY start_time DESC`,
		since.UTC())
}

func (sdb *SQLiteDB) FindTemplates(ctx context.Context) ([]*model.Job, error) {
	return sdb.queryJobs(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = 1
		ORDER BY start_time`)
}

func (sdb *SQLiteDB) FindTemplateFor(ctx context.Context, name string, stationID int64) (*model.Job, error) {
	row := sdb.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = 1 AND name = ? AND station_id = ?
		LIMIT 1`,
		name, stationID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return j, err
}

func (sdb *SQLiteDB) FindLatestInstance(ctx context.Context, name string, stationID int64) (*model.Job, error) {
	row := sdb.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE is_recurring = 0 AND name = ? AND station_id = ?
		ORDER BY start_time DESC
		LIMIT 1`,
		name, stationID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return j, err
}

func (sdb *SQLiteDB) InsertInstanceIfAbsent(ctx context.Context, job *model.Job) (bool, error) {
	var podcastID any
	if job.PodcastID != nil {
		podcastID = *job.PodcastID
	}
	now := time.Now().UTC()
	// Conditional insert in one statement: the existence check and the
	// insert commit atomically, so concurrent generation triggers cannot
	// both create the instance.
	res, err := sdb.db.ExecContext(ctx, `
		INSERT INTO jobs (name, station_id, podcast_id, start_time, end_time,
			duration_seconds, status, interrupted, reason, file_path, file_size,
			format, bitrate, is_recurring, recurrence_type, recurrence_end,
			local_storage_status, remote_storage_status, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, 0, '', '', 0, ?, ?, 0, '', NULL, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM jobs
			WHERE name = ? AND station_id = ? AND start_time = ? AND is_recurring = 0
		)`,
		job.Name, job.StationID, podcastID, job.StartTime.UTC(), job.EndTime.UTC(),
		job.DurationSeconds, model.PhaseScheduled,
		job.Format, job.Bitrate, model.StoragePending, model.StoragePending,
		now, now,
		job.Name, job.StationID, job.StartTime.UTC())
	if err != nil {
		return false, fmt.Errorf("failed conditional insert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
