package pharmacy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RxStatus is a prescription's own lifecycle, independent of the visit
// status.
type RxStatus string

const (
	RxPending RxStatus = "pending"
	RxFilled  RxStatus = "filled"
	RxDenied  RxStatus = "denied"
)

// Prescription maps to the prescriptions table. AwaitingLab gates filling:
// a prescription for a lab-dependent medication stays out of the fill queue
// until a pharmacist approves it against the lab results.
type Prescription struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	VisitID        string     `db:"visit_id" json:"visit_id"`
	PatientID      string     `db:"patient_id" json:"patient_id"`
	MedicationName string     `db:"medication_name" json:"medication_name"`
	Dosage         string     `db:"dosage" json:"dosage"`
	Instructions   string     `db:"instructions" json:"instructions"`
	Status         RxStatus   `db:"status" json:"status"`
	AwaitingLab    bool       `db:"awaiting_lab" json:"awaiting_lab"`
	FilledBy       *string    `db:"filled_by" json:"filled_by,omitempty"`
	FilledAt       *time.Time `db:"filled_at" json:"filled_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

func (p *Prescription) validate() error {
	if p.VisitID == "" {
		return fmt.Errorf("visit_id is required")
	}
	if p.MedicationName == "" {
		return fmt.Errorf("medication_name is required")
	}
	return nil
}

// PresetMedication is one catalog entry the doctor can order by name.
// RequiresLab marks medications whose prescriptions must clear lab approval
// before filling.
type PresetMedication struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Name          string    `db:"medication_name" json:"medication_name"`
	CommonDosages string    `db:"common_dosages" json:"common_dosages"`
	RequiresLab   bool      `db:"requires_lab" json:"requires_lab"`
	Category      string    `db:"category" json:"category"`
	Active        bool      `db:"active" json:"active"`
}

// QueueItem is one fill-queue row with the patient's name for the board.
type QueueItem struct {
	Prescription *Prescription `json:"prescription"`
	PatientName  string        `json:"patient_name"`
}
