package lab

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parakaleo/clinic/internal/domain/visit"
)

// VisitGateway is the slice of the visit service the lab needs to hand a
// resulted visit back to the doctor.
type VisitGateway interface {
	Get(ctx context.Context, visitID string) (*visit.Visit, error)
	Transition(ctx context.Context, visitID string, to visit.Status) error
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

// OrderTests writes the tests a doctor ordered during a consultation.
// Satisfies the consultation domain's LabOrderWriter.
func (s *Service) OrderTests(ctx context.Context, visitID, patientID string, testTypes []string) error {
	if len(testTypes) == 0 {
		return fmt.Errorf("at least one test type is required")
	}
	for _, raw := range testTypes {
		tt := TestType(raw)
		if !ValidTestType(tt) {
			return fmt.Errorf("unknown test type: %s", raw)
		}
		t := &LabTest{
			ID:        uuid.New(),
			VisitID:   visitID,
			PatientID: patientID,
			TestType:  tt,
			Status:    TestPending,
			OrderedAt: s.now().UTC(),
		}
		if err := s.repo.Create(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByVisit(ctx context.Context, visitID string) ([]*LabTest, error) {
	return s.repo.ListByVisit(ctx, visitID)
}

// PendingQueue lists unresulted tests in order of arrival.
func (s *Service) PendingQueue(ctx context.Context, limit, offset int) ([]*QueueItem, int, error) {
	return s.repo.ListPending(ctx, limit, offset)
}

// CompleteTest stores a test's structured results and marks it resulted in
// one transaction. Resulting the visit's last pending test hands the visit
// back to the doctor queue.
func (s *Service) CompleteTest(ctx context.Context, id uuid.UUID, values map[string]string, technician string) error {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != TestPending {
		return ErrAlreadyCompleted
	}
	if err := validateResults(t.TestType, values); err != nil {
		return err
	}

	results := make([]*Result, 0, len(values))
	for field, value := range values {
		results = append(results, &Result{
			ID:        uuid.New(),
			LabTestID: id,
			Field:     field,
			Value:     value,
		})
	}

	return s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Complete(ctx, id, technician); err != nil {
			return err
		}
		if err := s.repo.AddResults(ctx, results); err != nil {
			return err
		}

		remaining, err := s.repo.CountPending(ctx, t.VisitID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		v, err := s.visits.Get(ctx, t.VisitID)
		if err != nil {
			return err
		}
		if v.Status != visit.StatusWaitingLab {
			// Doctor ordered tests alongside meds or a referral; that
			// station owns the visit.
			return nil
		}
		return s.visits.Transition(ctx, t.VisitID, visit.StatusWaitingConsultation)
	})
}

func (s *Service) Results(ctx context.Context, labTestID uuid.UUID) ([]*Result, error) {
	return s.repo.GetResults(ctx, labTestID)
}
