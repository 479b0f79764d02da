// Package export renders job history to spreadsheet files.
package export

import (
	"fmt"
	"time"

	"github.com/tealeg/xlsx"

	"radiorec/internal/app/model"
)

// ToExcel writes the given jobs to an xlsx workbook, one row per job.
func ToExcel(jobs []*model.Job, outputFilePath string) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Recordings")
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	headerRow.AddCell().Value = "ID"
	headerRow.AddCell().Value = "Name"
	headerRow.AddCell().Value = "Station"
	headerRow.AddCell().Value = "Start Time"
	headerRow.AddCell().Value = "End Time"
	headerRow.AddCell().Value = "Status"
	headerRow.AddCell().Value = "Reason"
	headerRow.AddCell().Value = "File"
	headerRow.AddCell().Value = "Size (bytes)"
	headerRow.AddCell().Value = "Remote Storage"

	for _, j := range jobs {
		row := sheet.AddRow()
		row.AddCell().Value = fmt.Sprint(j.ID)
		row.AddCell().Value = j.Name
		row.AddCell().Value = fmt.Sprint(j.StationID)
		row.AddCell().Value = j.StartTime.Format(time.RFC3339)
		row.AddCell().Value = j.EndTime.Format(time.RFC3339)
		row.AddCell().Value = j.State.String()
		row.AddCell().Value = j.State.Reason
		row.AddCell().Value = j.FilePath
		row.AddCell().Value = fmt.Sprint(j.FileSize)
		row.AddCell().Value = j.RemoteStorage
	}

	if err := file.Save(outputFilePath); err != nil {
		return fmt.Errorf("failed to save %s: %w", outputFilePath, err)
	}
	return nil
}
