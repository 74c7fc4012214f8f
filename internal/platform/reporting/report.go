package reporting

import (
	"context"
	"time"
)

// Summary is the day's clinic throughput at a glance.
type Summary struct {
	Date                string         `json:"date"`
	Registrations       int            `json:"registrations"`
	VisitsOpened        int            `json:"visits_opened"`
	VisitsCompleted     int            `json:"visits_completed"`
	VisitsByStatus      map[string]int `json:"visits_by_status"`
	PrescriptionsFilled int            `json:"prescriptions_filled"`
	LabTestsCompleted   int            `json:"lab_tests_completed"`
}

// SnapshotRow is one visit in the daily export workbook.
type SnapshotRow struct {
	VisitID          string
	PatientID        string
	PatientName      string
	Age              int
	Gender           string
	Status           string
	Priority         string
	VisitDate        time.Time
	TriageTime       *time.Time
	ConsultationTime *time.Time
	PharmacyTime     *time.Time
}

// Repository reads aggregate views for a clinic day.
type Repository interface {
	Summary(ctx context.Context, day time.Time) (*Summary, error)
	Snapshot(ctx context.Context, day time.Time) ([]*SnapshotRow, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Summary(ctx context.Context, day time.Time) (*Summary, error) {
	return s.repo.Summary(ctx, day)
}

// Workbook renders the day's snapshot as an xlsx download.
func (s *Service) Workbook(ctx context.Context, day time.Time) ([]byte, error) {
	rows, err := s.repo.Snapshot(ctx, day)
	if err != nil {
		return nil, err
	}
	return buildWorkbook(day, rows)
}
