package model

import "time"

// Station is an audio stream source. Format is the codec the station
// natively broadcasts; captures requesting the same format copy the stream
// unmodified.
type Station struct {
	ID         int64
	Name       string
	StreamURL  string
	Format     string
	Bitrate    int
	SampleRate int
	Channels   int
	IsValid    bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
