package visit

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a visit does not exist.
	ErrNotFound = errors.New("visit not found")
	// ErrVitalsRecorded is returned when vitals already exist for a visit.
	ErrVitalsRecorded = errors.New("vital signs already recorded for visit")
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, visitID string) (*Visit, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Visit, error)

	// UpdateStatus writes a status change that the service has already
	// validated against the guard table. The expected current status is part
	// of the WHERE clause so concurrent writers cannot double-apply a
	// transition.
	UpdateStatus(ctx context.Context, visitID string, from, to Status) error
	StampStationTime(ctx context.Context, visitID, column string) error

	// Queue reads, ordered critical < urgent < normal then ascending date.
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*QueueEntry, int, error)

	// Vitals
	CreateVitals(ctx context.Context, vs *VitalSigns) error
	GetVitals(ctx context.Context, visitID string) (*VitalSigns, error)
	HasVitals(ctx context.Context, visitID string) (bool, error)
}
