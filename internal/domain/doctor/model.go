package doctor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Availability is a doctor's current working state.
type Availability string

const (
	Available   Availability = "available"
	WithPatient Availability = "with_patient"
	Offline     Availability = "offline"
)

// ValidAvailability reports whether a is a recognized state.
func ValidAvailability(a Availability) bool {
	switch a {
	case Available, WithPatient, Offline:
		return true
	}
	return false
}

// Doctor maps to the doctors registry table. Names are unique.
type Doctor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (d *Doctor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("doctor name is required")
	}
	return nil
}

// Status is the single current-state row per doctor. Version increments on
// every write; claims carry the version they read so stale updates lose.
type Status struct {
	DoctorName       string       `db:"doctor_name" json:"doctor_name"`
	State            Availability `db:"state" json:"state"`
	CurrentPatientID *string      `db:"current_patient_id" json:"current_patient_id,omitempty"`
	Version          int64        `db:"version" json:"version"`
	UpdatedAt        time.Time    `db:"updated_at" json:"updated_at"`
}

// SeedList is the stock doctor roster loaded by the seed command.
func SeedList() []string {
	return []string{
		"Dr. Sarah Johnson",
		"Dr. Michael Rodriguez",
		"Dr. Emily Chen",
		"Dr. David Thompson",
		"Dr. Lisa Martinez",
		"Dr. James Wilson",
		"Dr. Maria Garcia",
		"Dr. Robert Kim",
	}
}
