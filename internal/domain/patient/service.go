package patient

import (
	"context"
	"fmt"
	"strings"
)

// VisitCreator is the slice of the visit service the patient workflow needs:
// linking a returning patient opens a new visit for them.
type VisitCreator interface {
	CreateVisit(ctx context.Context, patientID, priority string) (string, error)
}

const (
	maxFuzzyMatches  = 5
	maxAllocAttempts = 100
)

// TxFunc runs fn atomically. Wired to db.RunInTx in main; the default runs
// fn directly.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

type Service struct {
	repo   Repository
	visits VisitCreator
	runTx  TxFunc
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		runTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
}

// UseTx installs the transaction runner for multi-statement writes.
func (s *Service) UseTx(run TxFunc) {
	s.runTx = run
}

// SetVisitCreator attaches the visit service adapter. Wired in main; kept
// optional so registration-only tests need no visit stack.
func (s *Service) SetVisitCreator(vc VisitCreator) {
	s.visits = vc
}

// RegisterInput carries the demographic attributes for a new patient.
type RegisterInput struct {
	Name             string  `json:"name"`
	Age              int     `json:"age"`
	Gender           string  `json:"gender"`
	Phone            *string `json:"phone,omitempty"`
	EmergencyContact *string `json:"emergency_contact,omitempty"`
	MedicalHistory   *string `json:"medical_history,omitempty"`
	Allergies        *string `json:"allergies,omitempty"`
}

func (in *RegisterInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if in.Age < 0 {
		return fmt.Errorf("age must not be negative")
	}
	return nil
}

// Register allocates a fresh location-prefixed patient ID and creates the
// patient. The counter advance is atomic, and the formatted ID is defensively
// re-checked for collision before it is used.
func (s *Service) Register(ctx context.Context, locationCode string, in RegisterInput) (*Patient, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(locationCode) == "" {
		return nil, fmt.Errorf("location code is required")
	}

	patientID, err := s.allocateID(ctx, locationCode)
	if err != nil {
		return nil, err
	}

	p := &Patient{
		PatientID:        patientID,
		Name:             strings.TrimSpace(in.Name),
		Age:              in.Age,
		Gender:           in.Gender,
		Phone:            in.Phone,
		EmergencyContact: in.EmergencyContact,
		MedicalHistory:   in.MedicalHistory,
		Allergies:        in.Allergies,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

// registerLinked allocates an ID and creates a patient already carrying
// family linkage, in one insert.
func (s *Service) registerLinked(ctx context.Context, locationCode string, in RegisterInput, familyID, parentID, relationship string) (*Patient, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	patientID, err := s.allocateID(ctx, locationCode)
	if err != nil {
		return nil, err
	}

	p := &Patient{
		PatientID:        patientID,
		Name:             strings.TrimSpace(in.Name),
		Age:              in.Age,
		Gender:           in.Gender,
		Phone:            in.Phone,
		EmergencyContact: in.EmergencyContact,
		MedicalHistory:   in.MedicalHistory,
		Allergies:        in.Allergies,
		FamilyID:         &familyID,
		ParentID:         &parentID,
		Relationship:     &relationship,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create family member: %w", err)
	}
	return p, nil
}

func (s *Service) allocateID(ctx context.Context, locationCode string) (string, error) {
	for attempt := 0; attempt < maxAllocAttempts; attempt++ {
		seq, err := s.repo.NextSequence(ctx, locationCode)
		if err != nil {
			return "", err
		}
		id := FormatPatientID(locationCode, seq)
		taken, err := s.repo.Exists(ctx, id)
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not allocate patient id for location %s", locationCode)
}

// CheckDuplicate returns exact case-insensitive name (or phone) matches plus
// up to 5 fuzzy first/last-token matches, newest first, excluding the exact
// set. Age never narrows the match sets; when given it is echoed on fuzzy
// candidates as an age gap for the human resolving the duplicate. Nothing is
// merged automatically.
func (s *Service) CheckDuplicate(ctx context.Context, name string, age int, phone string) (*DuplicateResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	exact, err := s.repo.FindExactByName(ctx, name, phone)
	if err != nil {
		return nil, fmt.Errorf("exact match: %w", err)
	}

	excludeIDs := make([]string, 0, len(exact))
	for _, p := range exact {
		excludeIDs = append(excludeIDs, p.PatientID)
	}

	fuzzy, err := s.repo.FindFuzzyByTokens(ctx, NameTokens(name), excludeIDs, maxFuzzyMatches)
	if err != nil {
		return nil, fmt.Errorf("fuzzy match: %w", err)
	}

	matches := make([]*FuzzyMatch, 0, len(fuzzy))
	for _, p := range fuzzy {
		m := &FuzzyMatch{Patient: p}
		if age > 0 {
			gap := p.Age - age
			if gap < 0 {
				gap = -gap
			}
			m.AgeGap = &gap
		}
		matches = append(matches, m)
	}

	return &DuplicateResult{Exact: exact, Fuzzy: matches}, nil
}

// LinkToExisting resolves a duplicate by opening a new visit for the already
// registered patient and bumping their last-visit timestamp.
func (s *Service) LinkToExisting(ctx context.Context, patientID, priority string) (string, error) {
	if s.visits == nil {
		return "", fmt.Errorf("visit creator not configured")
	}
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return "", err
	}
	// The visit insert and the last-visit bump commit together or not at all.
	var visitID string
	err := s.runTx(ctx, func(ctx context.Context) error {
		var err error
		visitID, err = s.visits.CreateVisit(ctx, patientID, priority)
		if err != nil {
			return fmt.Errorf("create visit for %s: %w", patientID, err)
		}
		if err := s.repo.TouchLastVisit(ctx, patientID); err != nil {
			return fmt.Errorf("touch last visit: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return visitID, nil
}

// AddFamilyMember registers a child patient under a parent, lazily creating
// the parent's family group on first use.
func (s *Service) AddFamilyMember(ctx context.Context, parentID, locationCode, relationship string, in RegisterInput) (*Patient, error) {
	if !ValidChildRelationship(relationship) {
		return nil, fmt.Errorf("invalid relationship: %s", relationship)
	}
	parent, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("parent %s: %w", parentID, err)
	}

	familyID := FamilyIDFor(parentID)
	if parent.FamilyID == nil {
		if err := s.repo.SetFamilyID(ctx, parentID, familyID); err != nil {
			return nil, fmt.Errorf("assign family id: %w", err)
		}
	} else {
		familyID = *parent.FamilyID
	}

	return s.registerLinked(ctx, locationCode, in, familyID, parentID, relationship)
}

// FamilyMembers returns everyone sharing the subject's family group, head of
// household first, then by descending age.
func (s *Service) FamilyMembers(ctx context.Context, patientID string) ([]*Patient, error) {
	p, err := s.repo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if p.FamilyID == nil {
		return []*Patient{p}, nil
	}
	return s.repo.ListByFamily(ctx, *p.FamilyID)
}

func (s *Service) Get(ctx context.Context, patientID string) (*Patient, error) {
	return s.repo.GetByID(ctx, patientID)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) Update(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	return s.repo.Update(ctx, p)
}

// Delete removes the patient and all dependent records transactionally.
func (s *Service) Delete(ctx context.Context, patientID string) error {
	if _, err := s.repo.GetByID(ctx, patientID); err != nil {
		return err
	}
	return s.repo.DeleteCascade(ctx, patientID)
}

func (s *Service) AddPhoto(ctx context.Context, photo *Photo) error {
	if photo.PatientID == "" {
		return fmt.Errorf("patient_id is required")
	}
	if len(photo.Data) == 0 {
		return fmt.Errorf("photo data is required")
	}
	if _, err := s.repo.GetByID(ctx, photo.PatientID); err != nil {
		return err
	}
	return s.repo.AddPhoto(ctx, photo)
}

func (s *Service) Photos(ctx context.Context, patientID string) ([]*Photo, error) {
	return s.repo.ListPhotos(ctx, patientID)
}
