package roster

import "context"

// DivisionKind distinguishes the two membership tracks a student holds.
type DivisionKind string

const (
	// KindCore is the student's primary class group.
	KindCore DivisionKind = "core"
	// KindSpecialisation is the optional elective/specialisation group.
	KindSpecialisation DivisionKind = "specialisation"
)

// Student is a directory entry. A student has exactly one core
// division and at most one specialisation division; both are
// independent routing keys during reconciliation.
type Student struct {
	ID             string  `json:"id"`
	RollNumber     string  `json:"roll_number"`
	Name           *string `json:"name,omitempty"`
	CoreDivisionID *string `json:"core_division_id,omitempty"`
	SpecDivisionID *string `json:"spec_division_id,omitempty"`
}

// Directory is the read-only student lookup the engine consumes.
type Directory interface {
	ByRollNumbers(ctx context.Context, rolls []string) ([]Student, error)
	ByDivision(ctx context.Context, divisionID string, kind DivisionKind) ([]Student, error)
}
