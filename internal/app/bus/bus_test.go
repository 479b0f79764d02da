package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_DecodeValidPayload(t *testing.T) {
	m := Message{
		Topic: TopicStart,
		Body: []byte(`{"job_id":42,"station_id":7,"name":"morning-show",` +
			`"format":"mp3","bitrate":192,"end_time":"2026-03-10T09:00:00Z"}`),
	}

	var cmd StartCommand
	require.NoError(t, m.Decode(&cmd))
	assert.Equal(t, int64(42), cmd.JobID)
	assert.Equal(t, int64(7), cmd.StationID)
	assert.Equal(t, "morning-show", cmd.Name)
	assert.Equal(t, time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC), cmd.EndTime)
}

func TestMessage_DecodeRejectsMalformedJSON(t *testing.T) {
	m := Message{Topic: TopicCancel, Body: []byte(`{"job_id":`)}
	var cmd CancelCommand
	err := m.Decode(&cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), TopicCancel)
}

func TestMessage_DecodeRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
		into func() any
	}{
		{
			name: "start_without_station",
			body: `{"job_id":42,"name":"x","format":"mp3","end_time":"2026-03-10T09:00:00Z"}`,
			into: func() any { return &StartCommand{} },
		},
		{
			name: "schedule_with_end_before_start",
			body: `{"job_id":1,"start_time":"2026-03-10T09:00:00Z","end_time":"2026-03-10T08:00:00Z"}`,
			into: func() any { return &ScheduleCommand{} },
		},
		{
			name: "completed_without_status",
			body: `{"job_id":1,"size":100}`,
			into: func() any { return &CompletedEvent{} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{Topic: "test", Body: []byte(tt.body)}
			assert.Error(t, m.Decode(tt.into()))
		})
	}
}
