package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patients table. PatientID is a location-prefixed
// sequential identifier (e.g. "DR00001") and is immutable once assigned.
type Patient struct {
	PatientID        string     `db:"patient_id" json:"patient_id"`
	Name             string     `db:"name" json:"name"`
	Age              int        `db:"age" json:"age"`
	Gender           string     `db:"gender" json:"gender"`
	Phone            *string    `db:"phone" json:"phone,omitempty"`
	EmergencyContact *string    `db:"emergency_contact" json:"emergency_contact,omitempty"`
	MedicalHistory   *string    `db:"medical_history" json:"medical_history,omitempty"`
	Allergies        *string    `db:"allergies" json:"allergies,omitempty"`
	FamilyID         *string    `db:"family_id" json:"family_id,omitempty"`
	ParentID         *string    `db:"parent_id" json:"parent_id,omitempty"`
	Relationship     *string    `db:"relationship" json:"relationship,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	LastVisitAt      *time.Time `db:"last_visit_at" json:"last_visit_at,omitempty"`
}

// Photo maps to the patient_photos table.
type Photo struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID string    `db:"patient_id" json:"patient_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	Data      []byte    `db:"data" json:"-"`
	TakenAt   time.Time `db:"taken_at" json:"taken_at"`
}

// DuplicateResult carries both match sets from a duplicate check. It is a
// heuristic for a human to resolve, never a basis for automatic merging.
type DuplicateResult struct {
	Exact []*Patient    `json:"exact"`
	Fuzzy []*FuzzyMatch `json:"fuzzy"`
}

// FuzzyMatch is a fuzzy candidate annotated for the registrar. AgeGap is the
// distance between the candidate's age and the age given at check-in, when
// one was given; it never affects which candidates match.
type FuzzyMatch struct {
	*Patient
	AgeGap *int `json:"age_gap,omitempty"`
}

// HasMatches reports whether the check surfaced anything at all.
func (d *DuplicateResult) HasMatches() bool {
	return len(d.Exact) > 0 || len(d.Fuzzy) > 0
}

// Relationship tags for family members. The head of household carries
// "parent" (or "self" for a lone adult); children carry one of the rest.
const (
	RelParent    = "parent"
	RelSelf      = "self"
	RelChild     = "child"
	RelStepchild = "stepchild"
	RelAdopted   = "adopted"
	RelOther     = "other"
)

var childRelationships = map[string]bool{
	RelChild:     true,
	RelStepchild: true,
	RelAdopted:   true,
	RelOther:     true,
}

// ValidChildRelationship reports whether rel is an accepted tag for a family
// member added under a parent.
func ValidChildRelationship(rel string) bool {
	return childRelationships[rel]
}

// FormatPatientID builds a patient identifier from a location code and a
// sequence number: {LOCATION}{sequence:05d}.
func FormatPatientID(locationCode string, seq int) string {
	return fmt.Sprintf("%s%05d", strings.ToUpper(locationCode), seq)
}

// FamilyIDFor derives the lazily-created family identifier from the head of
// household's patient ID.
func FamilyIDFor(parentID string) string {
	return "FAM_" + parentID
}

// NameTokens splits a full name into its first and last tokens for fuzzy
// matching. A single-token name yields one token.
func NameTokens(name string) []string {
	fields := strings.Fields(strings.TrimSpace(name))
	switch len(fields) {
	case 0:
		return nil
	case 1:
		return []string{fields[0]}
	default:
		return []string{fields[0], fields[len(fields)-1]}
	}
}
