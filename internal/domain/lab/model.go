package lab

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// TestType enumerates the tests the clinic lab can run.
type TestType string

const (
	TestUrinalysis   TestType = "urinalysis"
	TestBloodGlucose TestType = "blood_glucose"
	TestPregnancy    TestType = "pregnancy"
)

// TestStatus is a lab test's own lifecycle.
type TestStatus string

const (
	TestPending   TestStatus = "pending"
	TestCompleted TestStatus = "completed"
)

// resultSchemas enumerates the result fields per test type. Completion
// rejects fields outside the schema so every stored result row is queryable
// by a known key.
var resultSchemas = map[TestType][]string{
	TestUrinalysis: {
		"color", "appearance", "specific_gravity", "ph",
		"protein", "glucose", "ketones", "blood",
		"bilirubin", "urobilinogen", "nitrite", "leukocyte_esterase",
		"wbc_per_hpf", "rbc_per_hpf", "epithelial_cells", "bacteria",
	},
	TestBloodGlucose: {"glucose_mg_dl"},
	TestPregnancy:    {"result"},
}

// ValidTestType reports whether t is an orderable test.
func ValidTestType(t TestType) bool {
	_, ok := resultSchemas[t]
	return ok
}

// SchemaFor returns the allowed result fields for a test type.
func SchemaFor(t TestType) []string {
	fields := resultSchemas[t]
	out := make([]string, len(fields))
	copy(out, fields)
	return out
}

// LabTest maps to the lab_tests table, one row per ordered test.
type LabTest struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	VisitID     string     `db:"visit_id" json:"visit_id"`
	PatientID   string     `db:"patient_id" json:"patient_id"`
	TestType    TestType   `db:"test_type" json:"test_type"`
	Status      TestStatus `db:"status" json:"status"`
	OrderedAt   time.Time  `db:"ordered_at" json:"ordered_at"`
	CompletedBy *string    `db:"completed_by" json:"completed_by,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// Result is one key/value row of a completed test's results.
type Result struct {
	ID        uuid.UUID `db:"id" json:"id"`
	LabTestID uuid.UUID `db:"lab_test_id" json:"lab_test_id"`
	Field     string    `db:"field" json:"field"`
	Value     string    `db:"value" json:"value"`
}

// validateResults checks submitted values against the test type's schema.
func validateResults(testType TestType, values map[string]string) error {
	if len(values) == 0 {
		return fmt.Errorf("result values are required")
	}
	allowed := make(map[string]bool, len(resultSchemas[testType]))
	for _, f := range resultSchemas[testType] {
		allowed[f] = true
	}
	var unknown []string
	for field := range values {
		if !allowed[field] {
			unknown = append(unknown, field)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("fields not in %s schema: %v", testType, unknown)
	}
	return nil
}

// QueueItem is one pending-test row with the patient's name for the board.
type QueueItem struct {
	Test        *LabTest `json:"test"`
	PatientName string   `json:"patient_name"`
}
