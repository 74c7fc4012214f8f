package doctor

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

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctors (id, name, is_active, created_at)
		VALUES ($1, $2, $3, $4)`,
		d.ID, d.Name, d.Active, d.CreatedAt)
	if isUniqueViolation(err) {
		return ErrNameTaken
	}
	if err != nil {
		return fmt.Errorf("insert doctor %q: %w", d.Name, err)
	}
	return nil
}

func (r *repoPG) GetByName(ctx context.Context, name string) (*Doctor, error) {
	var d Doctor
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, is_active, created_at FROM doctors WHERE name = $1`, name).
		Scan(&d.ID, &d.Name, &d.Active, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor %q: %w", name, err)
	}
	return &d, nil
}

func (r *repoPG) List(ctx context.Context, activeOnly bool) ([]*Doctor, error) {
	q := `SELECT id, name, is_active, created_at FROM doctors`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY name`

	rows, err := r.conn(ctx).Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Active, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (r *repoPG) SetActive(ctx context.Context, name string, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE doctors SET is_active = $2 WHERE name = $1`, name, active)
	if err != nil {
		return fmt.Errorf("set doctor %q active=%t: %w", name, active, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const statusCols = `doctor_name, state, current_patient_id, version, updated_at`

func (r *repoPG) GetStatus(ctx context.Context, doctorName string) (*Status, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+statusCols+` FROM doctor_status WHERE doctor_name = $1`, doctorName)
	return scanStatus(row)
}

func (r *repoPG) ListStatuses(ctx context.Context) ([]*Status, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+statusCols+` FROM doctor_status ORDER BY doctor_name`)
	if err != nil {
		return nil, fmt.Errorf("list doctor statuses: %w", err)
	}
	defer rows.Close()

	var out []*Status
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) UpsertStatus(ctx context.Context, doctorName string, state Availability) (*Status, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor_status (doctor_name, state, current_patient_id, version, updated_at)
		VALUES ($1, $2, NULL, 1, NOW())
		ON CONFLICT (doctor_name) DO UPDATE
		SET state = EXCLUDED.state,
			current_patient_id = NULL,
			version = doctor_status.version + 1,
			updated_at = NOW()
		RETURNING `+statusCols, doctorName, state)
	s, err := scanStatus(row)
	if err != nil {
		return nil, fmt.Errorf("upsert status for %q: %w", doctorName, err)
	}
	return s, nil
}

func (r *repoPG) Claim(ctx context.Context, doctorName, patientID string, version int64) (*Status, error) {
	// Version CAS plus a cross-row guard: the claim only lands if the doctor
	// is still available at the version the caller read and nobody else holds
	// the patient. The guard alone is not race-proof under READ COMMITTED
	// (two claims on different doctor rows never block each other), so the
	// partial unique index on current_patient_id backs it: the losing claim
	// surfaces as a unique violation.
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor_status
		SET state = 'with_patient',
			current_patient_id = $2,
			version = version + 1,
			updated_at = NOW()
		WHERE doctor_name = $1
			AND state = 'available'
			AND version = $3
			AND NOT EXISTS (
				SELECT 1 FROM doctor_status other
				WHERE other.current_patient_id = $2 AND other.doctor_name <> $1
			)
		RETURNING `+statusCols, doctorName, patientID, version)
	s, err := scanStatus(row)
	if isUniqueViolation(err) {
		return nil, ErrPatientClaimed
	}
	if errors.Is(err, ErrNotFound) {
		return nil, r.classifyClaimFailure(ctx, doctorName, patientID)
	}
	if err != nil {
		return nil, fmt.Errorf("claim patient %s for %q: %w", patientID, doctorName, err)
	}
	return s, nil
}

// classifyClaimFailure distinguishes a lost version race from a patient held
// elsewhere so the station can show the right message.
func (r *repoPG) classifyClaimFailure(ctx context.Context, doctorName, patientID string) error {
	var held bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor_status
			WHERE current_patient_id = $1 AND doctor_name <> $2
		)`, patientID, doctorName).Scan(&held)
	if err != nil {
		return fmt.Errorf("inspect failed claim: %w", err)
	}
	if held {
		return ErrPatientClaimed
	}
	return ErrStale
}

func scanStatus(row pgx.Row) (*Status, error) {
	var s Status
	err := row.Scan(&s.DoctorName, &s.State, &s.CurrentPatientID, &s.Version, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan doctor status: %w", err)
	}
	return &s, nil
}
