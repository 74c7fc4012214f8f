package consultation

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no consultation exists for a visit.
	ErrNotFound = errors.New("consultation not found")
	// ErrAlreadyCompleted is returned when a visit already has a consultation.
	ErrAlreadyCompleted = errors.New("consultation already recorded for visit")
)

type Repository interface {
	Create(ctx context.Context, c *Consultation) error
	GetByVisit(ctx context.Context, visitID string) (*Consultation, error)
	ExistsForVisit(ctx context.Context, visitID string) (bool, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Consultation, error)

	CreateEyeExam(ctx context.Context, e *EyeExamination) error
	GetEyeExamByVisit(ctx context.Context, visitID string) (*EyeExamination, error)
}
