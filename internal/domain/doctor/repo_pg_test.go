package doctor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "idx_doctor_status_patient"}
	if !isUniqueViolation(unique) {
		t.Error("unique violation not detected")
	}
	if !isUniqueViolation(fmt.Errorf("scan doctor status: %w", unique)) {
		t.Error("wrapped unique violation not detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("foreign key violation misread as unique violation")
	}
	if isUniqueViolation(errors.New("connection reset")) {
		t.Error("plain error misread as unique violation")
	}
	if isUniqueViolation(nil) {
		t.Error("nil misread as unique violation")
	}
}
