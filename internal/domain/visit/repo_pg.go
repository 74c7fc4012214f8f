package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parakaleo/clinic/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const visitCols = `visit_id, patient_id, status, priority, visit_date,
	triage_time, consultation_time, pharmacy_time`

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO visits (visit_id, patient_id, status, priority, visit_date)
		VALUES ($1,$2,$3,$4,$5)`,
		v.VisitID, v.PatientID, v.Status, v.Priority, v.VisitDate,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, visitID string) (*Visit, error) {
	v, err := scanVisit(r.conn(ctx).QueryRow(ctx,
		`SELECT `+visitCols+` FROM visits WHERE visit_id = $1`, visitID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string) ([]*Visit, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+visitCols+` FROM visits WHERE patient_id = $1 ORDER BY visit_date DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVisits(rows)
}

func (r *repoPG) UpdateStatus(ctx context.Context, visitID string, from, to Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE visits SET status = $3 WHERE visit_id = $1 AND status = $2`,
		visitID, from, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("visit %s not in status %s: %w", visitID, from, ErrNotFound)
	}
	return nil
}

var stationColumns = map[string]bool{
	"triage_time":       true,
	"consultation_time": true,
	"pharmacy_time":     true,
}

func (r *repoPG) StampStationTime(ctx context.Context, visitID, column string) error {
	if !stationColumns[column] {
		return fmt.Errorf("unknown station column: %s", column)
	}
	_, err := r.conn(ctx).Exec(ctx,
		fmt.Sprintf(`UPDATE visits SET %s = NOW() WHERE visit_id = $1`, column), visitID)
	return err
}

func (r *repoPG) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*QueueEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM visits WHERE status = $1`, status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT v.visit_id, v.patient_id, v.status, v.priority, v.visit_date,
			v.triage_time, v.consultation_time, v.pharmacy_time, p.name
		FROM visits v
		JOIN patients p ON p.patient_id = v.patient_id
		WHERE v.status = $1
		ORDER BY CASE v.priority WHEN 'critical' THEN 0 WHEN 'urgent' THEN 1 ELSE 2 END,
			v.visit_date ASC
		LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*QueueEntry
	for rows.Next() {
		var v Visit
		var name string
		if err := rows.Scan(&v.VisitID, &v.PatientID, &v.Status, &v.Priority, &v.VisitDate,
			&v.TriageTime, &v.ConsultationTime, &v.PharmacyTime, &name); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &QueueEntry{Visit: &v, PatientName: name})
	}
	return entries, total, rows.Err()
}

func (r *repoPG) CreateVitals(ctx context.Context, vs *VitalSigns) error {
	vs.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO vital_signs (
			id, visit_id, systolic_bp, diastolic_bp, heart_rate,
			temperature_f, weight_kg, height_cm, oxygen_saturation
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		vs.ID, vs.VisitID, vs.SystolicBP, vs.DiastolicBP, vs.HeartRate,
		vs.TemperatureF, vs.WeightKg, vs.HeightCm, vs.OxygenSaturation,
	)
	return err
}

func (r *repoPG) GetVitals(ctx context.Context, visitID string) (*VitalSigns, error) {
	var vs VitalSigns
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, visit_id, systolic_bp, diastolic_bp, heart_rate,
			temperature_f, weight_kg, height_cm, oxygen_saturation, recorded_at
		FROM vital_signs WHERE visit_id = $1`, visitID).Scan(
		&vs.ID, &vs.VisitID, &vs.SystolicBP, &vs.DiastolicBP, &vs.HeartRate,
		&vs.TemperatureF, &vs.WeightKg, &vs.HeightCm, &vs.OxygenSaturation, &vs.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &vs, nil
}

func (r *repoPG) HasVitals(ctx context.Context, visitID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM vital_signs WHERE visit_id = $1)`, visitID).Scan(&exists)
	return exists, err
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.VisitID, &v.PatientID, &v.Status, &v.Priority, &v.VisitDate,
		&v.TriageTime, &v.ConsultationTime, &v.PharmacyTime)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVisits(rows pgx.Rows) ([]*Visit, error) {
	var visits []*Visit
	for rows.Next() {
		var v Visit
		if err := rows.Scan(&v.VisitID, &v.PatientID, &v.Status, &v.Priority, &v.VisitDate,
			&v.TriageTime, &v.ConsultationTime, &v.PharmacyTime); err != nil {
			return nil, err
		}
		visits = append(visits, &v)
	}
	return visits, rows.Err()
}
