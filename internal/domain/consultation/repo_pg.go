package consultation

import (
	"context"
	"errors"
	"fmt"

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

const consultationCols = `id, visit_id, patient_id, doctor_name, chief_complaint,
	symptoms, diagnosis, treatment_plan, refer_ophthalmology, created_at`

func (r *repoPG) Create(ctx context.Context, c *Consultation) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO consultations (`+consultationCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.VisitID, c.PatientID, c.DoctorName, c.ChiefComplaint,
		c.Symptoms, c.Diagnosis, c.TreatmentPlan, c.ReferOphthalmology, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert consultation for visit %s: %w", c.VisitID, err)
	}
	return nil
}

func (r *repoPG) GetByVisit(ctx context.Context, visitID string) (*Consultation, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+consultationCols+` FROM consultations WHERE visit_id = $1`, visitID)
	return scanConsultation(row)
}

func (r *repoPG) ExistsForVisit(ctx context.Context, visitID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM consultations WHERE visit_id = $1)`, visitID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check consultation for visit %s: %w", visitID, err)
	}
	return exists, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string) ([]*Consultation, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+consultationCols+` FROM consultations
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list consultations for patient %s: %w", patientID, err)
	}
	defer rows.Close()

	var out []*Consultation
	for rows.Next() {
		c, err := scanConsultation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repoPG) CreateEyeExam(ctx context.Context, e *EyeExamination) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO eye_examinations (id, visit_id, examiner_name,
			visual_acuity_left, visual_acuity_right, findings,
			glasses_prescribed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.VisitID, e.ExaminerName, e.VisualAcuityLeft, e.VisualAcuityRight,
		e.Findings, e.GlassesPrescribed, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert eye examination for visit %s: %w", e.VisitID, err)
	}
	return nil
}

func (r *repoPG) GetEyeExamByVisit(ctx context.Context, visitID string) (*EyeExamination, error) {
	var e EyeExamination
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, visit_id, examiner_name, visual_acuity_left, visual_acuity_right,
			findings, glasses_prescribed, created_at
		FROM eye_examinations WHERE visit_id = $1`, visitID).
		Scan(&e.ID, &e.VisitID, &e.ExaminerName, &e.VisualAcuityLeft, &e.VisualAcuityRight,
			&e.Findings, &e.GlassesPrescribed, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get eye examination for visit %s: %w", visitID, err)
	}
	return &e, nil
}

func scanConsultation(row pgx.Row) (*Consultation, error) {
	var c Consultation
	err := row.Scan(&c.ID, &c.VisitID, &c.PatientID, &c.DoctorName, &c.ChiefComplaint,
		&c.Symptoms, &c.Diagnosis, &c.TreatmentPlan, &c.ReferOphthalmology, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan consultation: %w", err)
	}
	return &c, nil
}
