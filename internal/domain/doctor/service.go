package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Register adds a doctor to the registry. Duplicate names surface as a
// conflict.
func (s *Service) Register(ctx context.Context, name string) (*Doctor, error) {
	d := &Doctor{
		ID:        uuid.New(),
		Name:      name,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, name string) (*Doctor, error) {
	return s.repo.GetByName(ctx, name)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Doctor, error) {
	return s.repo.List(ctx, activeOnly)
}

func (s *Service) SetActive(ctx context.Context, name string, active bool) error {
	return s.repo.SetActive(ctx, name, active)
}

// Seed loads the stock roster, skipping names that already exist.
func (s *Service) Seed(ctx context.Context) (int, error) {
	created := 0
	for _, name := range SeedList() {
		_, err := s.Register(ctx, name)
		if errors.Is(err, ErrNameTaken) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

// Login marks a registered, active doctor available for the day.
func (s *Service) Login(ctx context.Context, name string) (*Status, error) {
	d, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, fmt.Errorf("doctor %q is inactive", name)
	}
	return s.repo.UpsertStatus(ctx, name, Available)
}

// Claim assigns a patient to a doctor. The caller supplies the status
// version it last read; a stale version or a patient held by another doctor
// rejects the claim.
func (s *Service) Claim(ctx context.Context, doctorName, patientID string, version int64) (*Status, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if _, err := s.repo.GetStatus(ctx, doctorName); err != nil {
		return nil, err
	}
	return s.repo.Claim(ctx, doctorName, patientID, version)
}

// Release puts a doctor back in the available pool.
func (s *Service) Release(ctx context.Context, doctorName string) (*Status, error) {
	return s.repo.UpsertStatus(ctx, doctorName, Available)
}

// Logout marks a doctor off shift.
func (s *Service) Logout(ctx context.Context, doctorName string) (*Status, error) {
	return s.repo.UpsertStatus(ctx, doctorName, Offline)
}

func (s *Service) Status(ctx context.Context, doctorName string) (*Status, error) {
	return s.repo.GetStatus(ctx, doctorName)
}

// Board lists every doctor's current state for the station display.
func (s *Service) Board(ctx context.Context) ([]*Status, error) {
	return s.repo.ListStatuses(ctx)
}
