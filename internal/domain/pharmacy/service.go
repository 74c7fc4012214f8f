package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parakaleo/clinic/internal/domain/consultation"
	"github.com/parakaleo/clinic/internal/domain/visit"
)

// VisitGateway is the slice of the visit service the pharmacy needs to close
// out a fully dispensed visit.
type VisitGateway interface {
	Get(ctx context.Context, visitID string) (*visit.Visit, error)
	Transition(ctx context.Context, visitID string, to visit.Status) error
	StampPharmacyTime(ctx context.Context, visitID string) error
}

type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo   Repository
	visits VisitGateway
	runTx  TxFunc
	now    func() time.Time
}

func NewService(repo Repository, visits VisitGateway) *Service {
	return &Service{
		repo:   repo,
		visits: visits,
		runTx:  func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) },
		now:    time.Now,
	}
}

func (s *Service) UseTx(run TxFunc) {
	s.runTx = run
}

// CreatePending writes the prescriptions ordered during a consultation. A
// medication that matches a lab-dependent catalog preset starts gated on lab
// approval. Satisfies the consultation domain's PrescriptionWriter.
func (s *Service) CreatePending(ctx context.Context, visitID, patientID string, items []consultation.PrescriptionItem) error {
	for _, item := range items {
		p := &Prescription{
			ID:             uuid.New(),
			VisitID:        visitID,
			PatientID:      patientID,
			MedicationName: item.MedicationName,
			Dosage:         item.Dosage,
			Instructions:   item.Instructions,
			Status:         RxPending,
			CreatedAt:      s.now().UTC(),
		}
		if err := p.validate(); err != nil {
			return err
		}

		preset, err := s.repo.GetPresetByName(ctx, item.MedicationName)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if preset != nil && preset.RequiresLab {
			p.AwaitingLab = true
		}

		if err := s.repo.Create(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByVisit(ctx context.Context, visitID string) ([]*Prescription, error) {
	return s.repo.ListByVisit(ctx, visitID)
}

// ReadyQueue lists prescriptions a pharmacist can fill right now. Lab-gated
// prescriptions stay off this queue until explicitly approved, even after
// their lab test completes.
func (s *Service) ReadyQueue(ctx context.Context, limit, offset int) ([]*QueueItem, int, error) {
	return s.repo.ListReady(ctx, limit, offset)
}

// AwaitingLabQueue lists prescriptions gated on lab approval.
func (s *Service) AwaitingLabQueue(ctx context.Context, limit, offset int) ([]*QueueItem, int, error) {
	return s.repo.ListAwaitingLab(ctx, limit, offset)
}

// Fill dispenses a pending prescription. Filling the visit's last pending
// prescription closes the visit and stamps the pharmacy time.
func (s *Service) Fill(ctx context.Context, id uuid.UUID, pharmacist string) error {
	return s.resolve(ctx, id, RxFilled, pharmacist)
}

// Deny refuses a pending prescription; denial is terminal for the
// prescription but still counts toward closing out the visit.
func (s *Service) Deny(ctx context.Context, id uuid.UUID, pharmacist string) error {
	return s.resolve(ctx, id, RxDenied, pharmacist)
}

func (s *Service) resolve(ctx context.Context, id uuid.UUID, to RxStatus, by string) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != RxPending {
		return ErrNotPending
	}
	if to == RxFilled && p.AwaitingLab {
		return ErrAwaitingLab
	}

	return s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Resolve(ctx, id, to, by); err != nil {
			return err
		}
		remaining, err := s.repo.CountPending(ctx, p.VisitID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		v, err := s.visits.Get(ctx, p.VisitID)
		if err != nil {
			return err
		}
		if v.Status != visit.StatusPrescribed {
			// Visit routed elsewhere (lab, ophthalmology); another station
			// closes it.
			return nil
		}
		if err := s.visits.StampPharmacyTime(ctx, p.VisitID); err != nil {
			return err
		}
		return s.visits.Transition(ctx, p.VisitID, visit.StatusCompleted)
	})
}

// Approve clears the lab gate on a pending prescription, returning it to the
// ready-to-fill queue.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != RxPending {
		return ErrNotPending
	}
	if !p.AwaitingLab {
		return fmt.Errorf("prescription %s is not awaiting lab approval", id)
	}
	return s.repo.ClearAwaitingLab(ctx, id)
}

func (s *Service) Presets(ctx context.Context, activeOnly bool) ([]*PresetMedication, error) {
	return s.repo.ListPresets(ctx, activeOnly)
}

// SeedPresets loads the stock catalog, updating entries that already exist.
func (s *Service) SeedPresets(ctx context.Context) (int, error) {
	catalog := PresetCatalog()
	for i := range catalog {
		catalog[i].ID = uuid.New()
		if err := s.repo.UpsertPreset(ctx, &catalog[i]); err != nil {
			return i, err
		}
	}
	return len(catalog), nil
}
