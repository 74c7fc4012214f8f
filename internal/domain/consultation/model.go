package consultation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Consultation maps to the consultations table: zero or one row per visit,
// written once when the doctor completes the encounter.
type Consultation struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	VisitID            string    `db:"visit_id" json:"visit_id"`
	PatientID          string    `db:"patient_id" json:"patient_id"`
	DoctorName         string    `db:"doctor_name" json:"doctor_name"`
	ChiefComplaint     string    `db:"chief_complaint" json:"chief_complaint"`
	Symptoms           *string   `db:"symptoms" json:"symptoms,omitempty"`
	Diagnosis          *string   `db:"diagnosis" json:"diagnosis,omitempty"`
	TreatmentPlan      *string   `db:"treatment_plan" json:"treatment_plan,omitempty"`
	ReferOphthalmology bool      `db:"refer_ophthalmology" json:"refer_ophthalmology"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

func (c *Consultation) validate() error {
	if c.VisitID == "" {
		return fmt.Errorf("visit_id is required")
	}
	if c.DoctorName == "" {
		return fmt.Errorf("doctor_name is required")
	}
	if c.ChiefComplaint == "" {
		return fmt.Errorf("chief complaint is required")
	}
	return nil
}

// PrescriptionItem is one medication ordered during a consultation. The
// pharmacy domain owns the resulting prescription rows.
type PrescriptionItem struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Instructions   string `json:"instructions"`
}

// CompleteInput is everything the doctor submits when closing an encounter.
type CompleteInput struct {
	Consultation  Consultation       `json:"consultation"`
	Prescriptions []PrescriptionItem `json:"prescriptions"`
	LabTests      []string           `json:"lab_tests"`
}

// EyeExamination maps to the eye_examinations table, recorded by the
// ophthalmology station for referred visits.
type EyeExamination struct {
	ID                uuid.UUID `db:"id" json:"id"`
	VisitID           string    `db:"visit_id" json:"visit_id"`
	ExaminerName      string    `db:"examiner_name" json:"examiner_name"`
	VisualAcuityLeft  *string   `db:"visual_acuity_left" json:"visual_acuity_left,omitempty"`
	VisualAcuityRight *string   `db:"visual_acuity_right" json:"visual_acuity_right,omitempty"`
	Findings          *string   `db:"findings" json:"findings,omitempty"`
	GlassesPrescribed bool      `db:"glasses_prescribed" json:"glasses_prescribed"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}
