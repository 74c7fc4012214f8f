package reporting

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

var snapshotHeader = []string{
	"Visit ID",
	"Patient ID",
	"Patient Name",
	"Age",
	"Gender",
	"Status",
	"Priority",
	"Visit Time",
	"Triage Time",
	"Consultation Time",
	"Pharmacy Time",
}

// buildWorkbook renders the day's visits as a single-sheet xlsx file.
func buildWorkbook(day time.Time, rows []*SnapshotRow) ([]byte, error) {
	f := excelize.NewFile()

	sheet := "Snapshot " + day.Format("2006-01-02")
	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, header := range snapshotHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("style header cell %s: %w", cell, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "C", 22); err != nil {
		f.Close()
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(sheet, "F", "K", 20); err != nil {
		f.Close()
		return nil, fmt.Errorf("set column width: %w", err)
	}

	for i, row := range rows {
		values := []interface{}{
			row.VisitID,
			row.PatientID,
			row.PatientName,
			row.Age,
			row.Gender,
			row.Status,
			row.Priority,
			row.VisitDate.Format("15:04:05"),
			formatStamp(row.TriageTime),
			formatStamp(row.ConsultationTime),
			formatStamp(row.PharmacyTime),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func formatStamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04:05")
}
