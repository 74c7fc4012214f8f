package visit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the station-pipeline state of a visit.
type Status string

const (
	StatusTriage              Status = "triage"
	StatusWaitingConsultation Status = "waiting_consultation"
	StatusPrescribed          Status = "prescribed"
	StatusWaitingLab          Status = "waiting_lab"
	StatusNeedsOphthalmology  Status = "needs_ophthalmology"
	StatusCompleted           Status = "completed"
)

// Priority orders queue display: critical before urgent before normal.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityUrgent   Priority = "urgent"
	PriorityNormal   Priority = "normal"
)

var validPriorities = map[Priority]bool{
	PriorityCritical: true,
	PriorityUrgent:   true,
	PriorityNormal:   true,
}

// ValidPriority reports whether p is a recognized priority.
func ValidPriority(p Priority) bool {
	return validPriorities[p]
}

// Rank returns the sort rank of a priority, lowest first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityUrgent:
		return 1
	default:
		return 2
	}
}

// transitions is the explicit guard table. A visit only ever moves forward
// along the pipeline; completed is absorbing. Any non-terminal state can be
// re-queued to waiting_consultation when the lab returns a visit to the
// provider.
var transitions = map[Status][]Status{
	StatusTriage:              {StatusWaitingConsultation},
	StatusWaitingConsultation: {StatusPrescribed, StatusWaitingLab, StatusNeedsOphthalmology, StatusCompleted},
	StatusPrescribed:          {StatusCompleted, StatusWaitingConsultation},
	StatusWaitingLab:          {StatusCompleted, StatusWaitingConsultation},
	StatusNeedsOphthalmology:  {StatusCompleted, StatusWaitingConsultation},
	StatusCompleted:           nil,
}

// ValidStatus reports whether s is one of the enumerated visit states.
func ValidStatus(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the guard table allows moving from one
// status to another.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a visit in this status can never move again.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// ErrInvalidTransition is the guard table's rejection.
type ErrInvalidTransition struct {
	From, To Status
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid visit transition: %s -> %s", e.From, e.To)
}

// Visit maps to the visits table. One row per clinic encounter.
type Visit struct {
	VisitID          string     `db:"visit_id" json:"visit_id"`
	PatientID        string     `db:"patient_id" json:"patient_id"`
	Status           Status     `db:"status" json:"status"`
	Priority         Priority   `db:"priority" json:"priority"`
	VisitDate        time.Time  `db:"visit_date" json:"visit_date"`
	TriageTime       *time.Time `db:"triage_time" json:"triage_time,omitempty"`
	ConsultationTime *time.Time `db:"consultation_time" json:"consultation_time,omitempty"`
	PharmacyTime     *time.Time `db:"pharmacy_time" json:"pharmacy_time,omitempty"`
}

// NewVisitID derives a visit identifier from the patient and the encounter
// time: {patient_id}_{yyyymmddhhmmss}.
func NewVisitID(patientID string, at time.Time) string {
	return fmt.Sprintf("%s_%s", patientID, at.UTC().Format("20060102150405"))
}

// VitalSigns maps to the vital_signs table: zero or one row per visit,
// immutable once recorded.
type VitalSigns struct {
	ID               uuid.UUID `db:"id" json:"id"`
	VisitID          string    `db:"visit_id" json:"visit_id"`
	SystolicBP       int       `db:"systolic_bp" json:"systolic_bp"`
	DiastolicBP      int       `db:"diastolic_bp" json:"diastolic_bp"`
	HeartRate        int       `db:"heart_rate" json:"heart_rate"`
	TemperatureF     float64   `db:"temperature_f" json:"temperature_f"`
	WeightKg         *float64  `db:"weight_kg" json:"weight_kg,omitempty"`
	HeightCm         *float64  `db:"height_cm" json:"height_cm,omitempty"`
	OxygenSaturation *int      `db:"oxygen_saturation" json:"oxygen_saturation,omitempty"`
	RecordedAt       time.Time `db:"recorded_at" json:"recorded_at"`
}

func (v *VitalSigns) validate() error {
	if v.SystolicBP <= 0 || v.DiastolicBP <= 0 {
		return fmt.Errorf("blood pressure is required")
	}
	if v.HeartRate <= 0 {
		return fmt.Errorf("heart rate is required")
	}
	if v.TemperatureF <= 0 {
		return fmt.Errorf("temperature is required")
	}
	return nil
}

// QueueEntry is one row of a station queue display: a visit joined with the
// patient's name for the board.
type QueueEntry struct {
	Visit       *Visit `json:"visit"`
	PatientName string `json:"patient_name"`
}
