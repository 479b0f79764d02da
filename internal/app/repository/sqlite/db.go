package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS stations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	stream_url TEXT NOT NULL,
	format TEXT NOT NULL DEFAULT 'mp3',
	bitrate INTEGER NOT NULL DEFAULT 0,
	sample_rate INTEGER NOT NULL DEFAULT 0,
	channels INTEGER NOT NULL DEFAULT 0,
	is_valid INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	station_id INTEGER NOT NULL REFERENCES stations(id),
	podcast_id INTEGER,
	start_time DATETIME NOT NULL,
	end_time DATETIME NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'SCHEDULED',
	interrupted INTEGER NOT NULL DEFAULT 0,
	reason TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	file_size INTEGER NOT NULL DEFAULT 0,
	format TEXT NOT NULL DEFAULT 'mp3',
	bitrate INTEGER NOT NULL DEFAULT 0,
	is_recurring INTEGER NOT NULL DEFAULT 0,
	recurrence_type TEXT NOT NULL DEFAULT '',
	recurrence_end DATETIME,
	local_storage_status TEXT NOT NULL DEFAULT 'PENDING',
	remote_storage_status TEXT NOT NULL DEFAULT 'PENDING',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_start ON jobs(status, start_time);
CREATE INDEX IF NOT EXISTS idx_jobs_series ON jobs(name, station_id, start_time);

CREATE TABLE IF NOT EXISTS podcasts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid TEXT NOT NULL UNIQUE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT 'en-GB',
	image_url TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS podcast_episodes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	podcast_id INTEGER NOT NULL REFERENCES podcasts(id),
	job_id INTEGER NOT NULL UNIQUE REFERENCES jobs(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	episode_number INTEGER NOT NULL DEFAULT 0,
	season_number INTEGER NOT NULL DEFAULT 1,
	pub_date DATETIME NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteDB implements the repository DAOs on a local sqlite file.
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens (creating if needed) the database at dbFilePath and
// ensures the schema exists.
func NewSQLiteDB(dbFilePath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_busy_timeout=5000", dbFilePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func (sdb *SQLiteDB) Close() error {
	return sdb.db.Close()
}
