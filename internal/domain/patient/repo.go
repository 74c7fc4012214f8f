package patient

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a patient or photo does not exist.
var ErrNotFound = errors.New("patient not found")

type Repository interface {
	// NextSequence atomically advances the per-location counter and returns
	// the new sequence number. On first use for a location the counter is
	// seeded from the highest existing patient ID suffix under that prefix.
	NextSequence(ctx context.Context, locationCode string) (int, error)

	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, patientID string) (*Patient, error)
	Exists(ctx context.Context, patientID string) (bool, error)
	Update(ctx context.Context, p *Patient) error
	TouchLastVisit(ctx context.Context, patientID string) error
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	// Duplicate detection
	FindExactByName(ctx context.Context, name string, phone string) ([]*Patient, error)
	FindFuzzyByTokens(ctx context.Context, tokens []string, excludeIDs []string, limit int) ([]*Patient, error)

	// Family grouping
	SetFamilyID(ctx context.Context, patientID, familyID string) error
	ListByFamily(ctx context.Context, familyID string) ([]*Patient, error)

	// Photos
	AddPhoto(ctx context.Context, photo *Photo) error
	ListPhotos(ctx context.Context, patientID string) ([]*Photo, error)

	// DeleteCascade removes the patient and every dependent row (visits,
	// vital signs, consultations, prescriptions, lab tests and results, eye
	// examinations, photos) in one transaction, verifying the patient row is
	// gone before committing.
	DeleteCascade(ctx context.Context, patientID string) error
}
