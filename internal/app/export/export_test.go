package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"radiorec/internal/app/model"
)

func TestToExcel(t *testing.T) {
	start := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	jobs := []*model.Job{
		{
			ID:            2,
			Name:          "evening-show",
			StationID:     7,
			StartTime:     start.Add(12 * time.Hour),
			EndTime:       start.Add(13 * time.Hour),
			State:         model.JobState{Phase: model.PhaseFailed, Reason: "ffmpeg exited with code 1"},
			Format:        "mp3",
			RemoteStorage: model.StoragePending,
		},
		{
			ID:            1,
			Name:          "morning-show",
			StationID:     7,
			StartTime:     start,
			EndTime:       start.Add(time.Hour),
			State:         model.JobState{Phase: model.PhaseComplete},
			FilePath:      "/rec/morning-show260310-Tue.mp3",
			FileSize:      2048,
			Format:        "mp3",
			RemoteStorage: model.StorageSuccess,
		},
	}

	out := filepath.Join(t.TempDir(), "history.xlsx")
	require.NoError(t, ToExcel(jobs, out))

	file, err := xlsx.OpenFile(out)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	sheet := file.Sheets[0]
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "ID", sheet.Rows[0].Cells[0].Value)
	assert.Equal(t, "evening-show", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "FAILED", sheet.Rows[1].Cells[5].Value)
	assert.Equal(t, "ffmpeg exited with code 1", sheet.Rows[1].Cells[6].Value)
	assert.Equal(t, "morning-show", sheet.Rows[2].Cells[1].Value)
	assert.Equal(t, "2048", sheet.Rows[2].Cells[8].Value)
	assert.Equal(t, "SUCCESS", sheet.Rows[2].Cells[9].Value)
}

func TestToExcel_EmptyHistory(t *testing.T) {
	out := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, ToExcel(nil, out))

	file, err := xlsx.OpenFile(out)
	require.NoError(t, err)
	require.Len(t, file.Sheets, 1)
	assert.Len(t, file.Sheets[0].Rows, 1)
}
