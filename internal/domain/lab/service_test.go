package lab

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/parakaleo/clinic/internal/domain/visit"
)

type mockRepo struct {
	tests   map[uuid.UUID]*LabTest
	results map[uuid.UUID][]*Result
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		tests:   make(map[uuid.UUID]*LabTest),
		results: make(map[uuid.UUID][]*Result),
	}
}

func (m *mockRepo) Create(_ context.Context, t *LabTest) error {
	cp := *t
	m.tests[t.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*LabTest, error) {
	t, ok := m.tests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockRepo) ListByVisit(_ context.Context, visitID string) ([]*LabTest, error) {
	var out []*LabTest
	for _, t := range m.tests {
		if t.VisitID == visitID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListPending(_ context.Context, _, _ int) ([]*QueueItem, int, error) {
	var items []*QueueItem
	for _, t := range m.tests {
		if t.Status == TestPending {
			cp := *t
			items = append(items, &QueueItem{Test: &cp})
		}
	}
	return items, len(items), nil
}

func (m *mockRepo) Complete(_ context.Context, id uuid.UUID, by string) error {
	t, ok := m.tests[id]
	if !ok || t.Status != TestPending {
		return ErrAlreadyCompleted
	}
	t.Status = TestCompleted
	t.CompletedBy = &by
	return nil
}

func (m *mockRepo) AddResults(_ context.Context, results []*Result) error {
	for _, r := range results {
		m.results[r.LabTestID] = append(m.results[r.LabTestID], r)
	}
	return nil
}

func (m *mockRepo) GetResults(_ context.Context, labTestID uuid.UUID) ([]*Result, error) {
	return m.results[labTestID], nil
}

func (m *mockRepo) CountPending(_ context.Context, visitID string) (int, error) {
	n := 0
	for _, t := range m.tests {
		if t.VisitID == visitID && t.Status == TestPending {
			n++
		}
	}
	return n, nil
}

type mockVisits struct {
	visits map[string]*visit.Visit
}

func newMockVisits(vs ...*visit.Visit) *mockVisits {
	m := &mockVisits{visits: make(map[string]*visit.Visit)}
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

func labVisit(id string) *visit.Visit {
	return &visit.Visit{VisitID: id, PatientID: "DR00001", Status: visit.StatusWaitingLab}
}

func glucoseValues() map[string]string {
	return map[string]string{"glucose_mg_dl": "112"}
}

func TestOrderTests_CreatesPendingTests(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockVisits())

	err := svc.OrderTests(context.Background(), "V1", "DR00001", []string{"urinalysis", "blood_glucose"})
	if err != nil {
		t.Fatalf("OrderTests: %v", err)
	}
	tests, _ := repo.ListByVisit(context.Background(), "V1")
	if len(tests) != 2 {
		t.Fatalf("got %d tests, want 2", len(tests))
	}
	for _, lt := range tests {
		if lt.Status != TestPending {
			t.Errorf("test %s status = %s, want pending", lt.TestType, lt.Status)
		}
	}
}

func TestOrderTests_RejectsUnknownType(t *testing.T) {
	svc := NewService(newMockRepo(), newMockVisits())
	if err := svc.OrderTests(context.Background(), "V1", "DR00001", []string{"x-ray"}); err == nil {
		t.Fatal("expected error for unknown test type")
	}
}

func TestCompleteTest_StoresStructuredResults(t *testing.T) {
	repo := newMockRepo()
	visits := newMockVisits(labVisit("V1"))
	svc := NewService(repo, visits)
	_ = svc.OrderTests(context.Background(), "V1", "DR00001", []string{"blood_glucose"})
	tests, _ := repo.ListByVisit(context.Background(), "V1")

	if err := svc.CompleteTest(context.Background(), tests[0].ID, glucoseValues(), "tech1"); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}
	results, _ := repo.GetResults(context.Background(), tests[0].ID)
	if len(results) != 1 || results[0].Field != "glucose_mg_dl" || results[0].Value != "112" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestCompleteTest_RejectsFieldsOutsideSchema(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockVisits(labVisit("V1")))
	_ = svc.OrderTests(context.Background(), "V1", "DR00001", []string{"pregnancy"})
	tests, _ := repo.ListByVisit(context.Background(), "V1")

	err := svc.CompleteTest(context.Background(), tests[0].ID, map[string]string{"glucose_mg_dl": "90"}, "tech1")
	if err == nil {
		t.Fatal("expected error for field outside pregnancy schema")
	}
}

func TestCompleteTest_LastTestReturnsVisitToProvider(t *testing.T) {
	repo := newMockRepo()
	visits := newMockVisits(labVisit("V1"))
	svc := NewService(repo, visits)
	_ = svc.OrderTests(context.Background(), "V1", "DR00001", []string{"blood_glucose", "pregnancy"})
	tests, _ := repo.ListByVisit(context.Background(), "V1")

	var glucose, pregnancy *LabTest
	for _, lt := range tests {
		switch lt.TestType {
		case TestBloodGlucose:
			glucose = lt
		case TestPregnancy:
			pregnancy = lt
		}
	}

	if err := svc.CompleteTest(context.Background(), glucose.ID, glucoseValues(), "tech1"); err != nil {
		t.Fatalf("complete glucose: %v", err)
	}
	if visits.visits["V1"].Status != visit.StatusWaitingLab {
		t.Fatal("visit returned with a test still pending")
	}

	if err := svc.CompleteTest(context.Background(), pregnancy.ID, map[string]string{"result": "negative"}, "tech1"); err != nil {
		t.Fatalf("complete pregnancy: %v", err)
	}
	if visits.visits["V1"].Status != visit.StatusWaitingConsultation {
		t.Errorf("visit status = %s, want waiting_consultation after last result", visits.visits["V1"].Status)
	}
}

func TestCompleteTest_LeavesReroutedVisitAlone(t *testing.T) {
	repo := newMockRepo()
	v := labVisit("V1")
	v.Status = visit.StatusPrescribed
	visits := newMockVisits(v)
	svc := NewService(repo, visits)
	_ = svc.OrderTests(context.Background(), "V1", "DR00001", []string{"blood_glucose"})
	tests, _ := repo.ListByVisit(context.Background(), "V1")

	if err := svc.CompleteTest(context.Background(), tests[0].ID, glucoseValues(), "tech1"); err != nil {
		t.Fatalf("CompleteTest: %v", err)
	}
	if visits.visits["V1"].Status != visit.StatusPrescribed {
		t.Error("lab moved a visit owned by the pharmacy")
	}
}

func TestCompleteTest_DoubleCompletionRejected(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, newMockVisits(labVisit("V1")))
	_ = svc.OrderTests(context.Background(), "V1", "DR00001", []string{"blood_glucose"})
	tests, _ := repo.ListByVisit(context.Background(), "V1")

	if err := svc.CompleteTest(context.Background(), tests[0].ID, glucoseValues(), "tech1"); err != nil {
		t.Fatalf("first completion: %v", err)
	}
	err := svc.CompleteTest(context.Background(), tests[0].ID, glucoseValues(), "tech2")
	if !errors.Is(err, ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
}

func TestSchemaFor_Urinalysis(t *testing.T) {
	fields := SchemaFor(TestUrinalysis)
	if len(fields) != 16 {
		t.Errorf("urinalysis schema has %d fields, want 16", len(fields))
	}
	if len(SchemaFor(TestBloodGlucose)) != 1 || len(SchemaFor(TestPregnancy)) != 1 {
		t.Error("single-value schemas should have exactly one field")
	}
}
