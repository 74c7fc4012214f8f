package reporting

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestBuildWorkbook_RoundTrip(t *testing.T) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	triage := day.Add(9 * time.Hour)
	rows := []*SnapshotRow{
		{
			VisitID:     "DR00001_20240601090000",
			PatientID:   "DR00001",
			PatientName: "Maria Lopez",
			Age:         34,
			Gender:      "female",
			Status:      "completed",
			Priority:    "normal",
			VisitDate:   day.Add(9 * time.Hour),
			TriageTime:  &triage,
		},
		{
			VisitID:     "DR00002_20240601091500",
			PatientID:   "DR00002",
			PatientName: "Ana Reyes",
			Age:         7,
			Gender:      "female",
			Status:      "triage",
			Priority:    "urgent",
			VisitDate:   day.Add(9*time.Hour + 15*time.Minute),
		},
	}

	data, err := buildWorkbook(day, rows)
	if err != nil {
		t.Fatalf("buildWorkbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	sheet := "Snapshot 2024-06-01"
	got, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("sheet has %d rows, want header + 2", len(got))
	}
	if got[0][0] != "Visit ID" {
		t.Errorf("header cell = %q, want Visit ID", got[0][0])
	}
	if got[1][2] != "Maria Lopez" {
		t.Errorf("first data row name = %q, want Maria Lopez", got[1][2])
	}
	if got[2][5] != "triage" {
		t.Errorf("second data row status = %q, want triage", got[2][5])
	}
}

func TestBuildWorkbook_EmptyDay(t *testing.T) {
	day := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	data, err := buildWorkbook(day, nil)
	if err != nil {
		t.Fatalf("buildWorkbook: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()
	got, err := f.GetRows("Snapshot 2024-06-02")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("empty day sheet has %d rows, want header only", len(got))
	}
}
