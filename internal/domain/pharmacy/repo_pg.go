package pharmacy

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

const rxCols = `id, visit_id, patient_id, medication_name, dosage, instructions,
	status, awaiting_lab, filled_by, filled_at, created_at`

func (r *repoPG) Create(ctx context.Context, p *Prescription) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescriptions (`+rxCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.VisitID, p.PatientID, p.MedicationName, p.Dosage, p.Instructions,
		p.Status, p.AwaitingLab, p.FilledBy, p.FilledAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert prescription for visit %s: %w", p.VisitID, err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id)
	return scanRx(row)
}

func (r *repoPG) ListByVisit(ctx context.Context, visitID string) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+rxCols+` FROM prescriptions
		WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, fmt.Errorf("list prescriptions for visit %s: %w", visitID, err)
	}
	defer rows.Close()
	return collectRx(rows)
}

func (r *repoPG) ListReady(ctx context.Context, limit, offset int) ([]*QueueItem, int, error) {
	return r.listQueue(ctx, `p.status = 'pending' AND NOT p.awaiting_lab`, limit, offset)
}

func (r *repoPG) ListAwaitingLab(ctx context.Context, limit, offset int) ([]*QueueItem, int, error) {
	return r.listQueue(ctx, `p.status = 'pending' AND p.awaiting_lab`, limit, offset)
}

func (r *repoPG) listQueue(ctx context.Context, where string, limit, offset int) ([]*QueueItem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM prescriptions p WHERE `+where).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count prescription queue: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+qualifiedRxCols+`, pa.name
		FROM prescriptions p
		JOIN patients pa ON pa.patient_id = p.patient_id
		WHERE `+where+`
		ORDER BY p.created_at
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list prescription queue: %w", err)
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		var p Prescription
		var name string
		if err := rows.Scan(&p.ID, &p.VisitID, &p.PatientID, &p.MedicationName, &p.Dosage,
			&p.Instructions, &p.Status, &p.AwaitingLab, &p.FilledBy, &p.FilledAt,
			&p.CreatedAt, &name); err != nil {
			return nil, 0, fmt.Errorf("scan prescription queue row: %w", err)
		}
		items = append(items, &QueueItem{Prescription: &p, PatientName: name})
	}
	return items, total, rows.Err()
}

const qualifiedRxCols = `p.id, p.visit_id, p.patient_id, p.medication_name, p.dosage,
	p.instructions, p.status, p.awaiting_lab, p.filled_by, p.filled_at, p.created_at`

func (r *repoPG) Resolve(ctx context.Context, id uuid.UUID, to RxStatus, by string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions
		SET status = $2, filled_by = $3, filled_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id, to, by)
	if err != nil {
		return fmt.Errorf("resolve prescription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *repoPG) ClearAwaitingLab(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE prescriptions SET awaiting_lab = FALSE
		WHERE id = $1 AND status = 'pending' AND awaiting_lab`, id)
	if err != nil {
		return fmt.Errorf("approve prescription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *repoPG) CountPending(ctx context.Context, visitID string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM prescriptions
		WHERE visit_id = $1 AND status = 'pending'`, visitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending prescriptions for visit %s: %w", visitID, err)
	}
	return n, nil
}

func (r *repoPG) ListPresets(ctx context.Context, activeOnly bool) ([]*PresetMedication, error) {
	q := `SELECT id, medication_name, common_dosages, requires_lab, category, active
		FROM preset_medications`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY category, medication_name`

	rows, err := r.conn(ctx).Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list preset medications: %w", err)
	}
	defer rows.Close()

	var out []*PresetMedication
	for rows.Next() {
		var m PresetMedication
		if err := rows.Scan(&m.ID, &m.Name, &m.CommonDosages, &m.RequiresLab, &m.Category, &m.Active); err != nil {
			return nil, fmt.Errorf("scan preset medication: %w", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r *repoPG) GetPresetByName(ctx context.Context, name string) (*PresetMedication, error) {
	var m PresetMedication
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, medication_name, common_dosages, requires_lab, category, active
		FROM preset_medications WHERE LOWER(medication_name) = LOWER($1)`, name).
		Scan(&m.ID, &m.Name, &m.CommonDosages, &m.RequiresLab, &m.Category, &m.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preset medication %q: %w", name, err)
	}
	return &m, nil
}

func (r *repoPG) UpsertPreset(ctx context.Context, m *PresetMedication) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO preset_medications (id, medication_name, common_dosages, requires_lab, category, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (medication_name) DO UPDATE
		SET common_dosages = EXCLUDED.common_dosages,
			requires_lab = EXCLUDED.requires_lab,
			category = EXCLUDED.category,
			active = EXCLUDED.active`,
		m.ID, m.Name, m.CommonDosages, m.RequiresLab, m.Category, m.Active)
	if err != nil {
		return fmt.Errorf("upsert preset medication %q: %w", m.Name, err)
	}
	return nil
}

func scanRx(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.VisitID, &p.PatientID, &p.MedicationName, &p.Dosage,
		&p.Instructions, &p.Status, &p.AwaitingLab, &p.FilledBy, &p.FilledAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan prescription: %w", err)
	}
	return &p, nil
}

func collectRx(rows pgx.Rows) ([]*Prescription, error) {
	var out []*Prescription
	for rows.Next() {
		p, err := scanRx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
