package patient

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

const patientCols = `patient_id, name, age, gender, phone, emergency_contact,
	medical_history, allergies, family_id, parent_id, relationship,
	created_at, last_visit_at`

func (r *repoPG) NextSequence(ctx context.Context, locationCode string) (int, error) {
	// Seed the counter from the highest existing suffix on first use, then
	// advance it atomically. Concurrent callers serialize on the counter row.
	var seq int
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO counters (location_code, next_seq)
		VALUES ($1, (
			SELECT COALESCE(MAX(CAST(SUBSTRING(patient_id FROM char_length($1) + 1) AS INTEGER)), 0) + 1
			FROM patients WHERE patient_id LIKE $1 || '%'
		))
		ON CONFLICT (location_code) DO UPDATE SET next_seq = counters.next_seq + 1
		RETURNING next_seq`, locationCode).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("advance counter for %s: %w", locationCode, err)
	}
	return seq, nil
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (
			patient_id, name, age, gender, phone, emergency_contact,
			medical_history, allergies, family_id, parent_id, relationship
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.PatientID, p.Name, p.Age, p.Gender, p.Phone, p.EmergencyContact,
		p.MedicalHistory, p.Allergies, p.FamilyID, p.ParentID, p.Relationship,
	)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, patientID string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE patient_id = $1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func (r *repoPG) Exists(ctx context.Context, patientID string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE patient_id = $1)`, patientID).Scan(&exists)
	return exists, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET
			name=$2, age=$3, gender=$4, phone=$5, emergency_contact=$6,
			medical_history=$7, allergies=$8
		WHERE patient_id = $1`,
		p.PatientID, p.Name, p.Age, p.Gender, p.Phone, p.EmergencyContact,
		p.MedicalHistory, p.Allergies,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) TouchLastVisit(ctx context.Context, patientID string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET last_visit_at = NOW() WHERE patient_id = $1`, patientID)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	patients, err := collectPatients(rows)
	return patients, total, err
}

func (r *repoPG) FindExactByName(ctx context.Context, name string, phone string) ([]*Patient, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE LOWER(name) = LOWER($1) OR ($2 <> '' AND phone = $2)
		ORDER BY created_at DESC`, name, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (r *repoPG) FindFuzzyByTokens(ctx context.Context, tokens []string, excludeIDs []string, limit int) ([]*Patient, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE EXISTS (
			SELECT 1 FROM unnest($1::text[]) AS tok
			WHERE name ILIKE '%' || tok || '%'
		)
		AND patient_id <> ALL($2::text[])
		ORDER BY created_at DESC
		LIMIT $3`, tokens, excludeIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (r *repoPG) SetFamilyID(ctx context.Context, patientID, familyID string) error {
	// Tags the head of household on first family assignment.
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET family_id = $2, relationship = COALESCE(relationship, 'parent')
		 WHERE patient_id = $1`, patientID, familyID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListByFamily(ctx context.Context, familyID string) ([]*Patient, error) {
	// Head of household first, then the rest by descending age.
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+` FROM patients
		WHERE family_id = $1
		ORDER BY CASE WHEN relationship IN ('parent','self') THEN 0 ELSE 1 END, age DESC`,
		familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (r *repoPG) AddPhoto(ctx context.Context, photo *Photo) error {
	photo.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_photos (id, patient_id, file_name, data)
		VALUES ($1,$2,$3,$4)`,
		photo.ID, photo.PatientID, photo.FileName, photo.Data,
	)
	return err
}

func (r *repoPG) ListPhotos(ctx context.Context, patientID string) ([]*Photo, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, file_name, data, taken_at
		FROM patient_photos WHERE patient_id = $1 ORDER BY taken_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		var p Photo
		if err := rows.Scan(&p.ID, &p.PatientID, &p.FileName, &p.Data, &p.TakenAt); err != nil {
			return nil, err
		}
		photos = append(photos, &p)
	}
	return photos, rows.Err()
}

// DeleteCascade removes the patient and every dependent row in one
// transaction. Although the schema declares ON DELETE CASCADE foreign keys,
// the deletes run explicitly and the patient row's absence is verified before
// commit; partial deletion is a correctness bug.
func (r *repoPG) DeleteCascade(ctx context.Context, patientID string) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.TxFromContext(ctx)

		stmts := []string{
			`DELETE FROM lab_results WHERE lab_test_id IN
				(SELECT id FROM lab_tests WHERE visit_id IN
					(SELECT visit_id FROM visits WHERE patient_id = $1))`,
			`DELETE FROM lab_tests WHERE visit_id IN
				(SELECT visit_id FROM visits WHERE patient_id = $1)`,
			`DELETE FROM prescriptions WHERE visit_id IN
				(SELECT visit_id FROM visits WHERE patient_id = $1)`,
			`DELETE FROM eye_examinations WHERE visit_id IN
				(SELECT visit_id FROM visits WHERE patient_id = $1)`,
			`DELETE FROM consultations WHERE visit_id IN
				(SELECT visit_id FROM visits WHERE patient_id = $1)`,
			`DELETE FROM vital_signs WHERE visit_id IN
				(SELECT visit_id FROM visits WHERE patient_id = $1)`,
			`DELETE FROM visits WHERE patient_id = $1`,
			`DELETE FROM patient_photos WHERE patient_id = $1`,
			`DELETE FROM patients WHERE patient_id = $1`,
		}
		for _, stmt := range stmts {
			if _, err := q.Exec(ctx, stmt, patientID); err != nil {
				return fmt.Errorf("cascade delete %s: %w", patientID, err)
			}
		}

		var exists bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM patients WHERE patient_id = $1)`, patientID).Scan(&exists); err != nil {
			return fmt.Errorf("verify delete %s: %w", patientID, err)
		}
		if exists {
			return fmt.Errorf("patient %s still present after delete", patientID)
		}
		return nil
	})
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.PatientID, &p.Name, &p.Age, &p.Gender, &p.Phone, &p.EmergencyContact,
		&p.MedicalHistory, &p.Allergies, &p.FamilyID, &p.ParentID, &p.Relationship,
		&p.CreatedAt, &p.LastVisitAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	var patients []*Patient
	for rows.Next() {
		var p Patient
		err := rows.Scan(
			&p.PatientID, &p.Name, &p.Age, &p.Gender, &p.Phone, &p.EmergencyContact,
			&p.MedicalHistory, &p.Allergies, &p.FamilyID, &p.ParentID, &p.Relationship,
			&p.CreatedAt, &p.LastVisitAt,
		)
		if err != nil {
			return nil, err
		}
		patients = append(patients, &p)
	}
	return patients, rows.Err()
}
