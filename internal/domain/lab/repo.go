package lab

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lab test does not exist.
	ErrNotFound = errors.New("lab test not found")
	// ErrAlreadyCompleted is returned when a completion targets a test that
	// has already been resulted.
	ErrAlreadyCompleted = errors.New("lab test already completed")
)

type Repository interface {
	Create(ctx context.Context, t *LabTest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	ListByVisit(ctx context.Context, visitID string) ([]*LabTest, error)

	// ListPending returns pending tests in order of arrival.
	ListPending(ctx context.Context, limit, offset int) ([]*QueueItem, int, error)

	// Complete marks a test resulted; the pending precondition is part of the
	// UPDATE so two technicians cannot double-result a test.
	Complete(ctx context.Context, id uuid.UUID, by string) error
	AddResults(ctx context.Context, results []*Result) error
	GetResults(ctx context.Context, labTestID uuid.UUID) ([]*Result, error)

	CountPending(ctx context.Context, visitID string) (int, error)
}
