package consultation

import (
	"context"
	"errors"
	"testing"

	"github.com/parakaleo/clinic/internal/domain/visit"
)

type mockRepo struct {
	consultations map[string]*Consultation
	eyeExams      map[string]*EyeExamination
	failCreate    bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		consultations: make(map[string]*Consultation),
		eyeExams:      make(map[string]*EyeExamination),
	}
}

func (m *mockRepo) Create(_ context.Context, c *Consultation) error {
	if m.failCreate {
		return errors.New("insert failed")
	}
	cp := *c
	m.consultations[c.VisitID] = &cp
	return nil
}

func (m *mockRepo) GetByVisit(_ context.Context, visitID string) (*Consultation, error) {
	c, ok := m.consultations[visitID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) ExistsForVisit(_ context.Context, visitID string) (bool, error) {
	_, ok := m.consultations[visitID]
	return ok, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID string) ([]*Consultation, error) {
	var out []*Consultation
	for _, c := range m.consultations {
		if c.PatientID == patientID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateEyeExam(_ context.Context, e *EyeExamination) error {
	cp := *e
	m.eyeExams[e.VisitID] = &cp
	return nil
}

func (m *mockRepo) GetEyeExamByVisit(_ context.Context, visitID string) (*EyeExamination, error) {
	e, ok := m.eyeExams[visitID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

type mockVisits struct {
	visits  map[string]*visit.Visit
	stamped map[string]bool
}

func newMockVisits(vs ...*visit.Visit) *mockVisits {
	m := &mockVisits{visits: make(map[string]*visit.Visit), stamped: make(map[string]bool)}
	for _, v := range vs {
		m.visits[v.VisitID] = v
	}
	return m
}

func (m *mockVisits) Get(_ context.Context, visitID string) (*visit.Visit, error) {
	v, ok := m.visits[visitID]
	if !ok {
		return nil, visit.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *mockVisits) Transition(_ context.Context, visitID string, to visit.Status) error {
	v, ok := m.visits[visitID]
	if !ok {
		return visit.ErrNotFound
	}
	if !visit.CanTransition(v.Status, to) {
		return &visit.ErrInvalidTransition{From: v.Status, To: to}
	}
	v.Status = to
	return nil
}

func (m *mockVisits) StampConsultationTime(_ context.Context, visitID string) error {
	m.stamped[visitID] = true
	return nil
}

type mockRx struct {
	written map[string][]PrescriptionItem
	fail    bool
}

func (m *mockRx) CreatePending(_ context.Context, visitID, _ string, items []PrescriptionItem) error {
	if m.fail {
		return errors.New("pharmacy write failed")
	}
	if m.written == nil {
		m.written = make(map[string][]PrescriptionItem)
	}
	m.written[visitID] = items
	return nil
}

type mockLabs struct {
	ordered map[string][]string
}

func (m *mockLabs) OrderTests(_ context.Context, visitID, _ string, types []string) error {
	if m.ordered == nil {
		m.ordered = make(map[string][]string)
	}
	m.ordered[visitID] = types
	return nil
}

func waitingVisit(id string) *visit.Visit {
	return &visit.Visit{VisitID: id, PatientID: "DR00001", Status: visit.StatusWaitingConsultation}
}

func testInput(visitID string) CompleteInput {
	return CompleteInput{Consultation: Consultation{
		VisitID:        visitID,
		DoctorName:     "Dr. Okafor",
		ChiefComplaint: "headache",
	}}
}

func TestComplete_NoOrdersCompletesVisit(t *testing.T) {
	repo := newMockRepo()
	visits := newMockVisits(waitingVisit("V1"))
	svc := NewService(repo, visits, &mockRx{}, &mockLabs{})

	c, err := svc.Complete(context.Background(), testInput("V1"))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if c.PatientID != "DR00001" {
		t.Errorf("patient_id = %s, want DR00001", c.PatientID)
	}
	if visits.visits["V1"].Status != visit.StatusCompleted {
		t.Errorf("visit status = %s, want completed", visits.visits["V1"].Status)
	}
	if !visits.stamped["V1"] {
		t.Error("consultation_time not stamped")
	}
}

func TestComplete_MedsRouteToPharmacy(t *testing.T) {
	visits := newMockVisits(waitingVisit("V1"))
	rx := &mockRx{}
	svc := NewService(newMockRepo(), visits, rx, &mockLabs{})

	in := testInput("V1")
	in.Prescriptions = []PrescriptionItem{{MedicationName: "Amoxicillin", Dosage: "500mg"}}
	in.LabTests = []string{"urinalysis"}

	if _, err := svc.Complete(context.Background(), in); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if visits.visits["V1"].Status != visit.StatusPrescribed {
		t.Errorf("visit status = %s, want prescribed when meds ordered", visits.visits["V1"].Status)
	}
	if len(rx.written["V1"]) != 1 {
		t.Error("prescriptions not handed to pharmacy")
	}
}

func TestComplete_LabsOnlyRouteToLab(t *testing.T) {
	visits := newMockVisits(waitingVisit("V1"))
	labs := &mockLabs{}
	svc := NewService(newMockRepo(), visits, &mockRx{}, labs)

	in := testInput("V1")
	in.LabTests = []string{"blood_glucose"}

	if _, err := svc.Complete(context.Background(), in); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if visits.visits["V1"].Status != visit.StatusWaitingLab {
		t.Errorf("visit status = %s, want waiting_lab", visits.visits["V1"].Status)
	}
	if len(labs.ordered["V1"]) != 1 {
		t.Error("lab tests not ordered")
	}
}

func TestComplete_ReferralOutranksOtherOrders(t *testing.T) {
	visits := newMockVisits(waitingVisit("V1"))
	svc := NewService(newMockRepo(), visits, &mockRx{}, &mockLabs{})

	in := testInput("V1")
	in.Consultation.ReferOphthalmology = true
	in.Prescriptions = []PrescriptionItem{{MedicationName: "Artificial tears"}}

	if _, err := svc.Complete(context.Background(), in); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if visits.visits["V1"].Status != visit.StatusNeedsOphthalmology {
		t.Errorf("visit status = %s, want needs_ophthalmology", visits.visits["V1"].Status)
	}
}

func TestComplete_RequiresChiefComplaint(t *testing.T) {
	svc := NewService(newMockRepo(), newMockVisits(waitingVisit("V1")), &mockRx{}, &mockLabs{})
	in := testInput("V1")
	in.Consultation.ChiefComplaint = ""
	if _, err := svc.Complete(context.Background(), in); err == nil {
		t.Fatal("expected error for missing chief complaint")
	}
}

func TestComplete_RejectsVisitNotWaiting(t *testing.T) {
	v := waitingVisit("V1")
	v.Status = visit.StatusTriage
	svc := NewService(newMockRepo(), newMockVisits(v), &mockRx{}, &mockLabs{})

	var invalid *visit.ErrInvalidTransition
	if _, err := svc.Complete(context.Background(), testInput("V1")); !errors.As(err, &invalid) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
}

func TestComplete_OncePerVisit(t *testing.T) {
	repo := newMockRepo()
	visits := newMockVisits(waitingVisit("V1"), waitingVisit("V1"))
	svc := NewService(repo, visits, &mockRx{}, &mockLabs{})

	if _, err := svc.Complete(context.Background(), testInput("V1")); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	visits.visits["V1"].Status = visit.StatusWaitingConsultation
	if _, err := svc.Complete(context.Background(), testInput("V1")); !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestComplete_PharmacyFailureAbortsTransaction(t *testing.T) {
	repo := newMockRepo()
	visits := newMockVisits(waitingVisit("V1"))
	svc := NewService(repo, visits, &mockRx{fail: true}, &mockLabs{})

	in := testInput("V1")
	in.Prescriptions = []PrescriptionItem{{MedicationName: "Amoxicillin"}}

	if _, err := svc.Complete(context.Background(), in); err == nil {
		t.Fatal("expected error when pharmacy write fails")
	}
	if visits.visits["V1"].Status != visit.StatusWaitingConsultation {
		t.Errorf("visit status moved to %s despite failed completion", visits.visits["V1"].Status)
	}
}

func TestCompleteEyeExam_ClosesReferredVisit(t *testing.T) {
	repo := newMockRepo()
	v := waitingVisit("V1")
	v.Status = visit.StatusNeedsOphthalmology
	visits := newMockVisits(v)
	svc := NewService(repo, visits, &mockRx{}, &mockLabs{})

	e := &EyeExamination{VisitID: "V1", ExaminerName: "Dr. Mensah"}
	if err := svc.CompleteEyeExam(context.Background(), e); err != nil {
		t.Fatalf("CompleteEyeExam: %v", err)
	}
	if visits.visits["V1"].Status != visit.StatusCompleted {
		t.Errorf("visit status = %s, want completed", visits.visits["V1"].Status)
	}
	if _, ok := repo.eyeExams["V1"]; !ok {
		t.Error("eye examination not stored")
	}
}

func TestCompleteEyeExam_RequiresReferral(t *testing.T) {
	svc := NewService(newMockRepo(), newMockVisits(waitingVisit("V1")), &mockRx{}, &mockLabs{})
	e := &EyeExamination{VisitID: "V1", ExaminerName: "Dr. Mensah"}
	var invalid *visit.ErrInvalidTransition
	if err := svc.CompleteEyeExam(context.Background(), e); !errors.As(err, &invalid) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
}
