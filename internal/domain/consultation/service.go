package consultation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/parakaleo/clinic/internal/domain/visit"
)

// VisitGateway is the slice of the visit service the doctor workflow needs.
type VisitGateway interface {
	Get(ctx context.Context, visitID string) (*visit.Visit, error)
	Transition(ctx context.Context, visitID string, to visit.Status) error
	StampConsultationTime(ctx context.Context, visitID string) error
}

// PrescriptionWriter hands ordered medications to the pharmacy domain. The
// pharmacy decides per item whether lab approval gates filling.
type PrescriptionWriter interface {
	CreatePending(ctx context.Context, visitID, patientID string, items []PrescriptionItem) error
}

// LabOrderWriter hands ordered tests to the lab domain.
type LabOrderWriter interface {
	OrderTests(ctx context.Context, visitID, patientID string, testTypes []string) error
}

// TxFunc runs fn atomically; every repository write inside fn shares one
// transaction.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo   Repository
	visits VisitGateway
	rx     PrescriptionWriter
	labs   LabOrderWriter
	runTx  TxFunc
	now    func() time.Time
}

func NewService(repo Repository, visits VisitGateway, rx PrescriptionWriter, labs LabOrderWriter) *Service {
	return &Service{
		repo:   repo,
		visits: visits,
		rx:     rx,
		labs:   labs,
		runTx:  func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) },
		now:    time.Now,
	}
}

// UseTx installs the transaction runner. Without it every write lands on its
// own connection, which is only acceptable in tests.
func (s *Service) UseTx(run TxFunc) {
	s.runTx = run
}

// Complete closes a doctor encounter in one transaction: the consultation
// row, any ordered prescriptions and lab tests, the consultation timestamp,
// and the visit's next status. Routing precedence: ophthalmology referral,
// then medications, then lab work, then done.
func (s *Service) Complete(ctx context.Context, in CompleteInput) (*Consultation, error) {
	c := in.Consultation
	if err := c.validate(); err != nil {
		return nil, err
	}

	v, err := s.visits.Get(ctx, c.VisitID)
	if err != nil {
		return nil, err
	}
	if v.Status != visit.StatusWaitingConsultation {
		return nil, &visit.ErrInvalidTransition{From: v.Status, To: nextStatus(in)}
	}

	exists, err := s.repo.ExistsForVisit(ctx, c.VisitID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyCompleted
	}

	c.ID = uuid.New()
	c.PatientID = v.PatientID
	c.CreatedAt = s.now().UTC()

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, &c); err != nil {
			return err
		}
		if len(in.Prescriptions) > 0 {
			if err := s.rx.CreatePending(ctx, c.VisitID, c.PatientID, in.Prescriptions); err != nil {
				return fmt.Errorf("write prescriptions: %w", err)
			}
		}
		if len(in.LabTests) > 0 {
			if err := s.labs.OrderTests(ctx, c.VisitID, c.PatientID, in.LabTests); err != nil {
				return fmt.Errorf("order lab tests: %w", err)
			}
		}
		if err := s.visits.StampConsultationTime(ctx, c.VisitID); err != nil {
			return err
		}
		return s.visits.Transition(ctx, c.VisitID, nextStatus(in))
	})
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func nextStatus(in CompleteInput) visit.Status {
	switch {
	case in.Consultation.ReferOphthalmology:
		return visit.StatusNeedsOphthalmology
	case len(in.Prescriptions) > 0:
		return visit.StatusPrescribed
	case len(in.LabTests) > 0:
		return visit.StatusWaitingLab
	default:
		return visit.StatusCompleted
	}
}

func (s *Service) GetByVisit(ctx context.Context, visitID string) (*Consultation, error) {
	return s.repo.GetByVisit(ctx, visitID)
}

func (s *Service) History(ctx context.Context, patientID string) ([]*Consultation, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// CompleteEyeExam records the ophthalmology findings and closes a referred
// visit.
func (s *Service) CompleteEyeExam(ctx context.Context, e *EyeExamination) error {
	if e.VisitID == "" {
		return fmt.Errorf("visit_id is required")
	}
	if e.ExaminerName == "" {
		return fmt.Errorf("examiner_name is required")
	}
	v, err := s.visits.Get(ctx, e.VisitID)
	if err != nil {
		return err
	}
	if v.Status != visit.StatusNeedsOphthalmology {
		return &visit.ErrInvalidTransition{From: v.Status, To: visit.StatusCompleted}
	}

	e.ID = uuid.New()
	e.CreatedAt = s.now().UTC()

	return s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateEyeExam(ctx, e); err != nil {
			return err
		}
		return s.visits.Transition(ctx, e.VisitID, visit.StatusCompleted)
	})
}

func (s *Service) EyeExam(ctx context.Context, visitID string) (*EyeExamination, error) {
	return s.repo.GetEyeExamByVisit(ctx, visitID)
}
