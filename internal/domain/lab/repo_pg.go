package lab

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

const testCols = `id, visit_id, patient_id, test_type, status, ordered_at,
	completed_by, completed_at`

func (r *repoPG) Create(ctx context.Context, t *LabTest) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_tests (`+testCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.VisitID, t.PatientID, t.TestType, t.Status, t.OrderedAt,
		t.CompletedBy, t.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert lab test for visit %s: %w", t.VisitID, err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+testCols+` FROM lab_tests WHERE id = $1`, id)
	return scanTest(row)
}

func (r *repoPG) ListByVisit(ctx context.Context, visitID string) ([]*LabTest, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+testCols+` FROM lab_tests
		WHERE visit_id = $1 ORDER BY ordered_at`, visitID)
	if err != nil {
		return nil, fmt.Errorf("list lab tests for visit %s: %w", visitID, err)
	}
	defer rows.Close()

	var out []*LabTest
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repoPG) ListPending(ctx context.Context, limit, offset int) ([]*QueueItem, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM lab_tests WHERE status = 'pending'`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pending lab tests: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT t.id, t.visit_id, t.patient_id, t.test_type, t.status, t.ordered_at,
			t.completed_by, t.completed_at, pa.name
		FROM lab_tests t
		JOIN patients pa ON pa.patient_id = t.patient_id
		WHERE t.status = 'pending'
		ORDER BY t.ordered_at
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list pending lab tests: %w", err)
	}
	defer rows.Close()

	var items []*QueueItem
	for rows.Next() {
		var t LabTest
		var name string
		if err := rows.Scan(&t.ID, &t.VisitID, &t.PatientID, &t.TestType, &t.Status,
			&t.OrderedAt, &t.CompletedBy, &t.CompletedAt, &name); err != nil {
			return nil, 0, fmt.Errorf("scan lab queue row: %w", err)
		}
		items = append(items, &QueueItem{Test: &t, PatientName: name})
	}
	return items, total, rows.Err()
}

func (r *repoPG) Complete(ctx context.Context, id uuid.UUID, by string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_tests
		SET status = 'completed', completed_by = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id, by)
	if err != nil {
		return fmt.Errorf("complete lab test %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyCompleted
	}
	return nil
}

func (r *repoPG) AddResults(ctx context.Context, results []*Result) error {
	for _, res := range results {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO lab_results (id, lab_test_id, field, value)
			VALUES ($1, $2, $3, $4)`,
			res.ID, res.LabTestID, res.Field, res.Value)
		if err != nil {
			return fmt.Errorf("insert lab result %s: %w", res.Field, err)
		}
	}
	return nil
}

func (r *repoPG) GetResults(ctx context.Context, labTestID uuid.UUID) ([]*Result, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, lab_test_id, field, value
		FROM lab_results WHERE lab_test_id = $1 ORDER BY field`, labTestID)
	if err != nil {
		return nil, fmt.Errorf("list results for lab test %s: %w", labTestID, err)
	}
	defer rows.Close()

	var out []*Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.ID, &res.LabTestID, &res.Field, &res.Value); err != nil {
			return nil, fmt.Errorf("scan lab result: %w", err)
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}

func (r *repoPG) CountPending(ctx context.Context, visitID string) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM lab_tests
		WHERE visit_id = $1 AND status = 'pending'`, visitID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending lab tests for visit %s: %w", visitID, err)
	}
	return n, nil
}

func scanTest(row pgx.Row) (*LabTest, error) {
	var t LabTest
	err := row.Scan(&t.ID, &t.VisitID, &t.PatientID, &t.TestType, &t.Status,
		&t.OrderedAt, &t.CompletedBy, &t.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan lab test: %w", err)
	}
	return &t, nil
}
