package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func (r *repoPG) Summary(ctx context.Context, day time.Time) (*Summary, error) {
	start, end := dayBounds(day)
	s := &Summary{
		Date:           start.Format("2006-01-02"),
		VisitsByStatus: make(map[string]int),
	}

	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM patients WHERE created_at >= $1 AND created_at < $2),
			(SELECT COUNT(*) FROM visits WHERE visit_date >= $1 AND visit_date < $2),
			(SELECT COUNT(*) FROM visits WHERE visit_date >= $1 AND visit_date < $2 AND status = 'completed'),
			(SELECT COUNT(*) FROM prescriptions WHERE filled_at >= $1 AND filled_at < $2 AND status = 'filled'),
			(SELECT COUNT(*) FROM lab_tests WHERE completed_at >= $1 AND completed_at < $2)`,
		start, end).
		Scan(&s.Registrations, &s.VisitsOpened, &s.VisitsCompleted, &s.PrescriptionsFilled, &s.LabTestsCompleted)
	if err != nil {
		return nil, fmt.Errorf("summarize day %s: %w", s.Date, err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT status, COUNT(*) FROM visits
		WHERE visit_date >= $1 AND visit_date < $2
		GROUP BY status`, start, end)
	if err != nil {
		return nil, fmt.Errorf("count visits by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		s.VisitsByStatus[status] = n
	}
	return s, rows.Err()
}

func (r *repoPG) Snapshot(ctx context.Context, day time.Time) ([]*SnapshotRow, error) {
	start, end := dayBounds(day)
	rows, err := r.pool.Query(ctx, `
		SELECT v.visit_id, v.patient_id, p.name, p.age, p.gender,
			v.status, v.priority, v.visit_date,
			v.triage_time, v.consultation_time, v.pharmacy_time
		FROM visits v
		JOIN patients p ON p.patient_id = v.patient_id
		WHERE v.visit_date >= $1 AND v.visit_date < $2
		ORDER BY v.visit_date`, start, end)
	if err != nil {
		return nil, fmt.Errorf("snapshot visits: %w", err)
	}
	defer rows.Close()

	var out []*SnapshotRow
	for rows.Next() {
		var row SnapshotRow
		if err := rows.Scan(&row.VisitID, &row.PatientID, &row.PatientName, &row.Age, &row.Gender,
			&row.Status, &row.Priority, &row.VisitDate,
			&row.TriageTime, &row.ConsultationTime, &row.PharmacyTime); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		out = append(out, &row)
	}
	return out, rows.Err()
}
