package doctor

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a doctor does not exist.
	ErrNotFound = errors.New("doctor not found")
	// ErrNameTaken is returned when registering a doctor whose name exists.
	ErrNameTaken = errors.New("doctor name already registered")
	// ErrStale is returned when a claim loses the version race.
	ErrStale = errors.New("doctor status changed since read")
	// ErrPatientClaimed is returned when another doctor already has the
	// patient.
	ErrPatientClaimed = errors.New("patient already claimed by another doctor")
)

type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByName(ctx context.Context, name string) (*Doctor, error)
	List(ctx context.Context, activeOnly bool) ([]*Doctor, error)
	SetActive(ctx context.Context, name string, active bool) error

	// Status writes. Claim is a compare-and-swap on (state, version) plus a
	// cross-row guard against the patient being held by another doctor.
	GetStatus(ctx context.Context, doctorName string) (*Status, error)
	ListStatuses(ctx context.Context) ([]*Status, error)
	UpsertStatus(ctx context.Context, doctorName string, state Availability) (*Status, error)
	Claim(ctx context.Context, doctorName, patientID string, version int64) (*Status, error)
}
