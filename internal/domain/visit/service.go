package visit

import (
	"context"
	"fmt"
	"time"
)

// FamilyMember is the slice of the patient record the family visit workflow
// needs. The patient service is adapted to this in main.
type FamilyMember struct {
	PatientID    string `json:"patient_id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Age          int    `json:"age"`
}

// FamilyDirectory looks up a patient's family group, head of household first.
type FamilyDirectory interface {
	FamilyMembers(ctx context.Context, patientID string) ([]FamilyMember, error)
}

// TxFunc runs fn atomically. Wired to db.RunInTx in main; the default runs
// fn directly.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo     Repository
	families FamilyDirectory
	queues   *FamilyQueueStore
	now      func() time.Time
	runTx    TxFunc
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		queues: NewFamilyQueueStore(),
		now:    time.Now,
		runTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
}

// UseTx installs the transaction runner for multi-statement writes.
func (s *Service) UseTx(run TxFunc) {
	s.runTx = run
}

// SetFamilyDirectory attaches the patient service adapter used for bulk
// family visit creation.
func (s *Service) SetFamilyDirectory(fd FamilyDirectory) {
	s.families = fd
}

// Create opens a new visit in triage for the given patient.
func (s *Service) Create(ctx context.Context, patientID string, priority Priority) (*Visit, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if priority == "" {
		priority = PriorityNormal
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("invalid priority: %s", priority)
	}

	at := s.now().UTC()
	v := &Visit{
		VisitID:   NewVisitID(patientID, at),
		PatientID: patientID,
		Status:    StatusTriage,
		Priority:  priority,
		VisitDate: at,
	}

	// Visit IDs carry second resolution; a second visit for the same patient
	// within the same second nudges forward until the ID is free.
	for attempt := 0; attempt < 5; attempt++ {
		if _, err := s.repo.GetByID(ctx, v.VisitID); err == ErrNotFound {
			break
		} else if err != nil {
			return nil, err
		}
		at = at.Add(time.Second)
		v.VisitID = NewVisitID(patientID, at)
		v.VisitDate = at
	}

	if err := s.repo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("create visit: %w", err)
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, visitID string) (*Visit, error) {
	return s.repo.GetByID(ctx, visitID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string) ([]*Visit, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// Transition moves a visit through the guard table. Every status write in
// the system funnels through here.
func (s *Service) Transition(ctx context.Context, visitID string, to Status) error {
	if !ValidStatus(to) {
		return fmt.Errorf("invalid status: %s", to)
	}
	v, err := s.repo.GetByID(ctx, visitID)
	if err != nil {
		return err
	}
	if !CanTransition(v.Status, to) {
		return &ErrInvalidTransition{From: v.Status, To: to}
	}
	return s.repo.UpdateStatus(ctx, visitID, v.Status, to)
}

// RecordVitals stores triage vitals (immutable once written) and moves the
// visit to waiting_consultation.
func (s *Service) RecordVitals(ctx context.Context, vs *VitalSigns) error {
	if err := vs.validate(); err != nil {
		return err
	}
	v, err := s.repo.GetByID(ctx, vs.VisitID)
	if err != nil {
		return err
	}
	if v.Status != StatusTriage {
		return &ErrInvalidTransition{From: v.Status, To: StatusWaitingConsultation}
	}
	recorded, err := s.repo.HasVitals(ctx, vs.VisitID)
	if err != nil {
		return err
	}
	if recorded {
		return ErrVitalsRecorded
	}

	// Vitals insert, station stamp, and status move land together or not at
	// all; a vitals row without the status move would strand the visit in
	// triage behind the immutability guard.
	return s.runTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateVitals(ctx, vs); err != nil {
			return fmt.Errorf("record vitals: %w", err)
		}
		if err := s.repo.StampStationTime(ctx, vs.VisitID, "triage_time"); err != nil {
			return err
		}
		return s.repo.UpdateStatus(ctx, vs.VisitID, StatusTriage, StatusWaitingConsultation)
	})
}

func (s *Service) Vitals(ctx context.Context, visitID string) (*VitalSigns, error) {
	return s.repo.GetVitals(ctx, visitID)
}

// StampConsultationTime records when the doctor finished with the visit.
func (s *Service) StampConsultationTime(ctx context.Context, visitID string) error {
	return s.repo.StampStationTime(ctx, visitID, "consultation_time")
}

// StampPharmacyTime records when the pharmacy finished with the visit.
func (s *Service) StampPharmacyTime(ctx context.Context, visitID string) error {
	return s.repo.StampStationTime(ctx, visitID, "pharmacy_time")
}

// ReturnToProvider re-queues a non-terminal visit to the doctor when the lab
// asks for provider review.
func (s *Service) ReturnToProvider(ctx context.Context, visitID string) error {
	return s.Transition(ctx, visitID, StatusWaitingConsultation)
}

// Queue returns the station queue for a status, critical first, then by
// ascending visit date.
func (s *Service) Queue(ctx context.Context, status Status, limit, offset int) ([]*QueueEntry, int, error) {
	if !ValidStatus(status) {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.repo.ListByStatus(ctx, status, limit, offset)
}

// CreateFamilyVisits opens one visit per family member in a single
// user-initiated action and returns a session-scoped vitals queue, parent
// first. Each member's visit is durable immediately; only the queue cursor
// lives in memory.
func (s *Service) CreateFamilyVisits(ctx context.Context, parentID string, priority Priority) (*FamilyQueue, error) {
	if s.families == nil {
		return nil, fmt.Errorf("family directory not configured")
	}
	members, err := s.families.FamilyMembers(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("family members for %s: %w", parentID, err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("no family members for %s", parentID)
	}

	entries := make([]FamilyQueueEntry, 0, len(members))
	for _, member := range members {
		v, err := s.Create(ctx, member.PatientID, priority)
		if err != nil {
			return nil, fmt.Errorf("visit for family member %s: %w", member.PatientID, err)
		}
		entries = append(entries, FamilyQueueEntry{
			PatientID:   member.PatientID,
			PatientName: member.Name,
			VisitID:     v.VisitID,
		})
	}

	return s.queues.Start(entries), nil
}

// FamilyQueueState returns the current state of a session's vitals queue so
// an interrupted station can resume where it left off.
func (s *Service) FamilyQueueState(sessionID string) (*FamilyQueue, error) {
	q, ok := s.queues.Get(sessionID)
	if !ok {
		return nil, fmt.Errorf("no family queue for session %s", sessionID)
	}
	return q, nil
}

// AdvanceFamilyQueue marks the current member handled and moves the cursor.
func (s *Service) AdvanceFamilyQueue(sessionID string) (*FamilyQueue, error) {
	q, ok := s.queues.Advance(sessionID)
	if !ok {
		return nil, fmt.Errorf("no family queue for session %s", sessionID)
	}
	return q, nil
}

// SkipFamilyQueue skips the current member (their visit stays in triage) and
// moves the cursor.
func (s *Service) SkipFamilyQueue(sessionID string) (*FamilyQueue, error) {
	q, ok := s.queues.Skip(sessionID)
	if !ok {
		return nil, fmt.Errorf("no family queue for session %s", sessionID)
	}
	return q, nil
}

// EndFamilyQueue discards a session's queue. Recorded vitals are already
// durable; only the cursor is lost.
func (s *Service) EndFamilyQueue(sessionID string) {
	s.queues.End(sessionID)
}
