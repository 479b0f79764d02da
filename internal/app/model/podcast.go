package model

import (
	"fmt"
	"time"
)

// Podcast groups published episodes under one feed.
type Podcast struct {
	ID          int64
	UUID        string
	Title       string
	Description string
	Author      string
	Email       string
	Category    string
	Language    string
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PodcastEpisode is one published capture. JobID is unique: a job yields at
// most one episode regardless of how often its completion is handled.
type PodcastEpisode struct {
	ID            int64
	PodcastID     int64
	JobID         int64
	Title         string
	Description   string
	EpisodeNumber int
	SeasonNumber  int
	PubDate       time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EpisodeDescription renders the feed description for a capture, e.g.
// "Morning Show, recorded on Saturday, 13th of December 2025 at 08:00".
func EpisodeDescription(name string, start time.Time) string {
	day := start.Day()
	suffix := "th"
	if day < 4 || (day > 20 && day < 24) || day == 31 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%s, recorded on %s, %d%s of %s %d at %s",
		name, start.Weekday(), day, suffix, start.Month(), start.Year(),
		start.Format("15:04"))
}
