package pharmacy

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a prescription does not exist.
	ErrNotFound = errors.New("prescription not found")
	// ErrNotPending is returned when a fill/deny/approve targets a
	// prescription that has already been resolved.
	ErrNotPending = errors.New("prescription is not pending")
	// ErrAwaitingLab is returned when a fill targets a prescription still
	// gated on lab approval.
	ErrAwaitingLab = errors.New("prescription awaits lab approval")
)

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	ListByVisit(ctx context.Context, visitID string) ([]*Prescription, error)

	// ListReady returns pending, non-gated prescriptions in fill order.
	ListReady(ctx context.Context, limit, offset int) ([]*QueueItem, int, error)
	// ListAwaitingLab returns pending prescriptions gated on lab approval.
	ListAwaitingLab(ctx context.Context, limit, offset int) ([]*QueueItem, int, error)

	// Resolve moves a pending prescription to filled or denied; the pending
	// precondition is part of the UPDATE so concurrent pharmacists cannot
	// double-resolve.
	Resolve(ctx context.Context, id uuid.UUID, to RxStatus, by string) error
	ClearAwaitingLab(ctx context.Context, id uuid.UUID) error
	CountPending(ctx context.Context, visitID string) (int, error)

	// Preset catalog
	ListPresets(ctx context.Context, activeOnly bool) ([]*PresetMedication, error)
	GetPresetByName(ctx context.Context, name string) (*PresetMedication, error)
	UpsertPreset(ctx context.Context, m *PresetMedication) error
}
