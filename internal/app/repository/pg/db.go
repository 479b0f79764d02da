package pg

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS stations (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	stream_url TEXT NOT NULL,
	format TEXT NOT NULL DEFAULT 'mp3',
	bitrate INTEGER NOT NULL DEFAULT 0,
	sample_rate INTEGER NOT NULL DEFAULT 0,
	channels INTEGER NOT NULL DEFAULT 0,
	is_valid BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS jobs (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	station_id BIGINT NOT NULL REFERENCES stations(id),
	podcast_id BIGINT,
	start_time TIMESTAMPTZ NOT NULL,
	end_time TIMESTAMPTZ NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'SCHEDULED',
	interrupted BOOLEAN NOT NULL DEFAULT FALSE,
	reason TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	file_size BIGINT NOT NULL DEFAULT 0,
	format TEXT NOT NULL DEFAULT 'mp3',
	bitrate INTEGER NOT NULL DEFAULT 0,
	is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
	recurrence_type TEXT NOT NULL DEFAULT '',
	recurrence_end TIMESTAMPTZ,
	local_storage_status TEXT NOT NULL DEFAULT 'PENDING',
	remote_storage_status TEXT NOT NULL DEFAULT 'PENDING',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_start ON jobs(status, start_time);
CREATE INDEX IF NOT EXISTS idx_jobs_series ON jobs(name, station_id, start_time);

CREATE TABLE IF NOT EXISTS podcasts (
	id BIGSERIAL PRIMARY KEY,
	uuid TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT 'en-GB',
	image_url TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS podcast_episodes (
	id BIGSERIAL PRIMARY KEY,
	podcast_id BIGINT NOT NULL REFERENCES podcasts(id),
	job_id BIGINT NOT NULL UNIQUE REFERENCES jobs(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	episode_number INTEGER NOT NULL DEFAULT 0,
	season_number INTEGER NOT NULL DEFAULT 1,
	pub_date TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// PostgresDB implements the repository DAOs on PostgreSQL.
type PostgresDB struct {
	db *sql.DB
}

// NewPostgresDB opens a connection with the given connection string.
func NewPostgresDB(connStr string) (*PostgresDB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &PostgresDB{db: db}, nil
}

// NewPostgresDBWithConn wraps an existing connection. Used by tests.
func NewPostgresDBWithConn(db *sql.DB) *PostgresDB {
	return &PostgresDB{db: db}
}

// InitSchema creates the tables if they do not exist.
func (pdb *PostgresDB) InitSchema() error {
	if _, err := pdb.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (pdb *PostgresDB) Close() error {
	return pdb.db.Close()
}
