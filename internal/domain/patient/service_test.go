package patient

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	patients map[string]*Patient
	photos   map[uuid.UUID]*Photo
	counters map[string]int

	// skipSeed makes NextSequence behave like a stale counter so the
	// defensive collision re-check is exercised.
	skipSeed bool
	touchErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		patients: make(map[string]*Patient),
		photos:   make(map[uuid.UUID]*Photo),
		counters: make(map[string]int),
	}
}

func (m *mockRepo) NextSequence(_ context.Context, locationCode string) (int, error) {
	if _, ok := m.counters[locationCode]; !ok && !m.skipSeed {
		max := 0
		for id := range m.patients {
			if strings.HasPrefix(id, locationCode) {
				var n int
				fmt.Sscanf(id[len(locationCode):], "%d", &n)
				if n > max {
					max = n
				}
			}
		}
		m.counters[locationCode] = max
	}
	m.counters[locationCode]++
	return m.counters[locationCode], nil
}

func (m *mockRepo) Create(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.PatientID]; ok {
		return fmt.Errorf("duplicate key")
	}
	p.CreatedAt = time.Now()
	m.patients[p.PatientID] = p
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, patientID string) (*Patient, error) {
	p, ok := m.patients[patientID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) Exists(_ context.Context, patientID string) (bool, error) {
	_, ok := m.patients[patientID]
	return ok, nil
}

func (m *mockRepo) Update(_ context.Context, p *Patient) error {
	if _, ok := m.patients[p.PatientID]; !ok {
		return ErrNotFound
	}
	m.patients[p.PatientID] = p
	return nil
}

func (m *mockRepo) TouchLastVisit(_ context.Context, patientID string) error {
	if m.touchErr != nil {
		return m.touchErr
	}
	p, ok := m.patients[patientID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	p.LastVisitAt = &now
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	var result []*Patient
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

func (m *mockRepo) FindExactByName(_ context.Context, name string, phone string) ([]*Patient, error) {
	var result []*Patient
	for _, p := range m.patients {
		if strings.EqualFold(p.Name, name) || (phone != "" && p.Phone != nil && *p.Phone == phone) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *mockRepo) FindFuzzyByTokens(_ context.Context, tokens []string, excludeIDs []string, limit int) ([]*Patient, error) {
	excluded := make(map[string]bool, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	var result []*Patient
	for _, p := range m.patients {
		if excluded[p.PatientID] {
			continue
		}
		for _, tok := range tokens {
			if strings.Contains(strings.ToLower(p.Name), strings.ToLower(tok)) {
				result = append(result, p)
				break
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *mockRepo) SetFamilyID(_ context.Context, patientID, familyID string) error {
	p, ok := m.patients[patientID]
	if !ok {
		return ErrNotFound
	}
	p.FamilyID = &familyID
	if p.Relationship == nil {
		rel := RelParent
		p.Relationship = &rel
	}
	return nil
}

func (m *mockRepo) ListByFamily(_ context.Context, familyID string) ([]*Patient, error) {
	var result []*Patient
	for _, p := range m.patients {
		if p.FamilyID != nil && *p.FamilyID == familyID {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		ri := result[i].Relationship != nil && (*result[i].Relationship == RelParent || *result[i].Relationship == RelSelf)
		rj := result[j].Relationship != nil && (*result[j].Relationship == RelParent || *result[j].Relationship == RelSelf)
		if ri != rj {
			return ri
		}
		return result[i].Age > result[j].Age
	})
	return result, nil
}

func (m *mockRepo) AddPhoto(_ context.Context, photo *Photo) error {
	photo.ID = uuid.New()
	photo.TakenAt = time.Now()
	m.photos[photo.ID] = photo
	return nil
}

func (m *mockRepo) ListPhotos(_ context.Context, patientID string) ([]*Photo, error) {
	var result []*Photo
	for _, p := range m.photos {
		if p.PatientID == patientID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockRepo) DeleteCascade(_ context.Context, patientID string) error {
	if _, ok := m.patients[patientID]; !ok {
		return ErrNotFound
	}
	delete(m.patients, patientID)
	for id, photo := range m.photos {
		if photo.PatientID == patientID {
			delete(m.photos, id)
		}
	}
	return nil
}

type mockVisitCreator struct {
	created []string
	fail    bool
}

func (m *mockVisitCreator) CreateVisit(_ context.Context, patientID, priority string) (string, error) {
	if m.fail {
		return "", fmt.Errorf("visit creation failed")
	}
	visitID := patientID + "_20250101120000"
	m.created = append(m.created, visitID)
	return visitID, nil
}

// -- Tests --

func mustRegister(t *testing.T, svc *Service, location, name string, age int) *Patient {
	t.Helper()
	p, err := svc.Register(context.Background(), location, RegisterInput{Name: name, Age: age, Gender: "F"})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return p
}

func TestRegister_AssignsLocationPrefixedID(t *testing.T) {
	svc := NewService(newMockRepo())

	p := mustRegister(t, svc, "DR", "Maria Lopez", 34)
	if p.PatientID != "DR00001" {
		t.Errorf("expected DR00001, got %s", p.PatientID)
	}

	p2 := mustRegister(t, svc, "DR", "Jane Doe", 28)
	if p2.PatientID != "DR00002" {
		t.Errorf("expected DR00002, got %s", p2.PatientID)
	}
}

func TestRegister_IndependentLocationSequences(t *testing.T) {
	svc := NewService(newMockRepo())

	mustRegister(t, svc, "DR", "A", 30)
	p := mustRegister(t, svc, "HT", "B", 40)
	if p.PatientID != "HT00001" {
		t.Errorf("expected HT00001, got %s", p.PatientID)
	}
}

func TestRegister_RequiresName(t *testing.T) {
	svc := NewService(newMockRepo())
	if _, err := svc.Register(context.Background(), "DR", RegisterInput{Name: "   "}); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestRegister_CollisionRecheck(t *testing.T) {
	repo := newMockRepo()
	repo.skipSeed = true
	svc := NewService(repo)

	// A patient already holds DR00001, but the counter starts fresh.
	repo.patients["DR00001"] = &Patient{PatientID: "DR00001", Name: "Existing"}

	p := mustRegister(t, svc, "DR", "New Patient", 20)
	if p.PatientID == "DR00001" {
		t.Fatal("allocated an ID already assigned to another patient")
	}
	if p.PatientID != "DR00002" {
		t.Errorf("expected DR00002 after collision skip, got %s", p.PatientID)
	}
}

func TestCheckDuplicate_ExactMatchSurfaced(t *testing.T) {
	svc := NewService(newMockRepo())
	mustRegister(t, svc, "DR", "Jane Doe", 30)

	result, err := svc.CheckDuplicate(context.Background(), "jane doe", 0, "")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if len(result.Exact) != 1 {
		t.Fatalf("expected 1 exact match, got %d", len(result.Exact))
	}
	if !result.HasMatches() {
		t.Error("expected HasMatches to be true")
	}
}

func TestCheckDuplicate_FuzzyExcludesExactAndCaps(t *testing.T) {
	svc := NewService(newMockRepo())
	mustRegister(t, svc, "DR", "Jane Doe", 30)
	for i := 0; i < 8; i++ {
		mustRegister(t, svc, "DR", fmt.Sprintf("Jane Number%d", i), 20+i)
	}

	result, err := svc.CheckDuplicate(context.Background(), "Jane Doe", 0, "")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if len(result.Exact) != 1 {
		t.Fatalf("expected 1 exact match, got %d", len(result.Exact))
	}
	if len(result.Fuzzy) != 5 {
		t.Errorf("expected fuzzy matches capped at 5, got %d", len(result.Fuzzy))
	}
	for _, p := range result.Fuzzy {
		if strings.EqualFold(p.Name, "Jane Doe") {
			t.Error("fuzzy set must exclude exact matches")
		}
	}
}

func TestCheckDuplicate_AgeAnnotatesFuzzyCandidates(t *testing.T) {
	svc := NewService(newMockRepo())
	mustRegister(t, svc, "DR", "Jane Doe", 30)
	mustRegister(t, svc, "DR", "Jane Smith", 34)

	result, err := svc.CheckDuplicate(context.Background(), "Jane Doe", 31, "")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if len(result.Fuzzy) != 1 {
		t.Fatalf("expected 1 fuzzy match, got %d", len(result.Fuzzy))
	}
	m := result.Fuzzy[0]
	if m.AgeGap == nil || *m.AgeGap != 3 {
		t.Errorf("age gap = %v, want 3", m.AgeGap)
	}

	// Age only annotates; the match sets are identical without it.
	without, err := svc.CheckDuplicate(context.Background(), "Jane Doe", 0, "")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if len(without.Exact) != len(result.Exact) || len(without.Fuzzy) != len(result.Fuzzy) {
		t.Error("age changed the match sets")
	}
	if without.Fuzzy[0].AgeGap != nil {
		t.Error("age gap set without an age to compare against")
	}
}

func TestCheckDuplicate_PhoneCountsAsExact(t *testing.T) {
	svc := NewService(newMockRepo())
	phone := "555-1000"
	if _, err := svc.Register(context.Background(), "DR", RegisterInput{Name: "Maria Lopez", Age: 34, Phone: &phone}); err != nil {
		t.Fatalf("register: %v", err)
	}

	result, err := svc.CheckDuplicate(context.Background(), "Completely Different", 0, "555-1000")
	if err != nil {
		t.Fatalf("check duplicate: %v", err)
	}
	if len(result.Exact) != 1 {
		t.Errorf("expected phone match in exact set, got %d", len(result.Exact))
	}
}

func TestLinkToExisting_CreatesVisitAndTouchesPatient(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	vc := &mockVisitCreator{}
	svc.SetVisitCreator(vc)

	p := mustRegister(t, svc, "DR", "Jane Doe", 30)

	visitID, err := svc.LinkToExisting(context.Background(), p.PatientID, "normal")
	if err != nil {
		t.Fatalf("link to existing: %v", err)
	}
	if visitID == "" {
		t.Fatal("expected a visit id")
	}
	if repo.patients[p.PatientID].LastVisitAt == nil {
		t.Error("expected last_visit_at to be set")
	}
}

func TestLinkToExisting_FailedTouchLeavesNoVisit(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	vc := &mockVisitCreator{}
	svc.SetVisitCreator(vc)
	// Transactional semantics over the mocks: a failure inside the runner
	// discards the visit created by fn.
	svc.UseTx(func(ctx context.Context, fn func(context.Context) error) error {
		created := len(vc.created)
		if err := fn(ctx); err != nil {
			vc.created = vc.created[:created]
			return err
		}
		return nil
	})

	p := mustRegister(t, svc, "DR", "Jane Doe", 30)

	repo.touchErr = fmt.Errorf("connection reset")
	if _, err := svc.LinkToExisting(context.Background(), p.PatientID, "normal"); err == nil {
		t.Fatal("expected LinkToExisting to fail")
	}
	if len(vc.created) != 0 {
		t.Fatalf("visit persisted after failed link: %v", vc.created)
	}

	repo.touchErr = nil
	if _, err := svc.LinkToExisting(context.Background(), p.PatientID, "normal"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if len(vc.created) != 1 {
		t.Fatalf("expected exactly one visit after retry, got %d", len(vc.created))
	}
	got, _ := repo.GetByID(context.Background(), p.PatientID)
	if got.LastVisitAt == nil {
		t.Error("last_visit_at not bumped on retry")
	}
}

func TestLinkToExisting_UnknownPatient(t *testing.T) {
	svc := NewService(newMockRepo())
	svc.SetVisitCreator(&mockVisitCreator{})

	if _, err := svc.LinkToExisting(context.Background(), "DR99999", "normal"); err == nil {
		t.Fatal("expected error for unknown patient")
	}
}

func TestAddFamilyMember_LazilyCreatesFamily(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	parent := mustRegister(t, svc, "DR", "Head Person", 40)

	child, err := svc.AddFamilyMember(context.Background(), parent.PatientID, "DR", RelChild, RegisterInput{Name: "Kid Person", Age: 8})
	if err != nil {
		t.Fatalf("add family member: %v", err)
	}

	wantFamily := FamilyIDFor(parent.PatientID)
	if child.FamilyID == nil || *child.FamilyID != wantFamily {
		t.Errorf("expected child family id %s, got %v", wantFamily, child.FamilyID)
	}
	if child.ParentID == nil || *child.ParentID != parent.PatientID {
		t.Errorf("expected parent id %s, got %v", parent.PatientID, child.ParentID)
	}
	got := repo.patients[parent.PatientID]
	if got.FamilyID == nil || *got.FamilyID != wantFamily {
		t.Errorf("expected parent to join family %s, got %v", wantFamily, got.FamilyID)
	}
}

func TestAddFamilyMember_InvalidRelationship(t *testing.T) {
	svc := NewService(newMockRepo())
	parent := mustRegister(t, svc, "DR", "Head Person", 40)

	if _, err := svc.AddFamilyMember(context.Background(), parent.PatientID, "DR", "cousin", RegisterInput{Name: "X", Age: 5}); err == nil {
		t.Fatal("expected error for invalid relationship")
	}
}

func TestFamilyMembers_OrderedHeadFirstThenAgeDesc(t *testing.T) {
	svc := NewService(newMockRepo())
	parent := mustRegister(t, svc, "DR", "Head Person", 40)

	if _, err := svc.AddFamilyMember(context.Background(), parent.PatientID, "DR", RelChild, RegisterInput{Name: "Younger", Age: 5}); err != nil {
		t.Fatalf("add member: %v", err)
	}
	if _, err := svc.AddFamilyMember(context.Background(), parent.PatientID, "DR", RelChild, RegisterInput{Name: "Older", Age: 12}); err != nil {
		t.Fatalf("add member: %v", err)
	}

	members, err := svc.FamilyMembers(context.Background(), parent.PatientID)
	if err != nil {
		t.Fatalf("family members: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
	if members[0].PatientID != parent.PatientID {
		t.Errorf("expected head of household first, got %s", members[0].Name)
	}
	if members[1].Name != "Older" || members[2].Name != "Younger" {
		t.Errorf("expected children by descending age, got %s then %s", members[1].Name, members[2].Name)
	}
}

func TestFamilyMembers_NoFamilyReturnsSelf(t *testing.T) {
	svc := NewService(newMockRepo())
	p := mustRegister(t, svc, "DR", "Solo", 25)

	members, err := svc.FamilyMembers(context.Background(), p.PatientID)
	if err != nil {
		t.Fatalf("family members: %v", err)
	}
	if len(members) != 1 || members[0].PatientID != p.PatientID {
		t.Errorf("expected only the subject, got %d members", len(members))
	}
}

func TestDelete_RemovesPatientAndPhotos(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	p := mustRegister(t, svc, "DR", "Jane Doe", 30)

	if err := svc.AddPhoto(context.Background(), &Photo{PatientID: p.PatientID, FileName: "intake.jpg", Data: []byte{1}}); err != nil {
		t.Fatalf("add photo: %v", err)
	}

	if err := svc.Delete(context.Background(), p.PatientID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := repo.patients[p.PatientID]; ok {
		t.Error("expected patient row removed")
	}
	if len(repo.photos) != 0 {
		t.Error("expected dependent photos removed")
	}
}

func TestDelete_UnknownPatient(t *testing.T) {
	svc := NewService(newMockRepo())
	if err := svc.Delete(context.Background(), "DR00042"); err == nil {
		t.Fatal("expected error for unknown patient")
	}
}

func TestFormatPatientID(t *testing.T) {
	tests := []struct {
		location string
		seq      int
		want     string
	}{
		{"DR", 1, "DR00001"},
		{"DR", 123, "DR00123"},
		{"ht", 7, "HT00007"},
		{"DR", 99999, "DR99999"},
	}
	for _, tt := range tests {
		if got := FormatPatientID(tt.location, tt.seq); got != tt.want {
			t.Errorf("FormatPatientID(%q, %d) = %q, want %q", tt.location, tt.seq, got, tt.want)
		}
	}
}

func TestNameTokens(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"Jane Doe", []string{"Jane", "Doe"}},
		{"Jane Marie Doe", []string{"Jane", "Doe"}},
		{"Cher", []string{"Cher"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		got := NameTokens(tt.name)
		if len(got) != len(tt.want) {
			t.Errorf("NameTokens(%q) = %v, want %v", tt.name, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("NameTokens(%q) = %v, want %v", tt.name, got, tt.want)
			}
		}
	}
}
