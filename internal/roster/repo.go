package roster

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository reads the student directory from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Directory = (*Repository)(nil)

// ByRollNumbers returns students matching any of the given roll numbers.
// Unknown rolls are simply absent from the result.
func (r *Repository) ByRollNumbers(ctx context.Context, rolls []string) ([]Student, error) {
	if len(rolls) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, roll_number, name, core_division_id, spec_division_id
		FROM students
		WHERE roll_number = ANY($1)
		ORDER BY roll_number
	`, pqStringArray(rolls))
	if err != nil {
		return nil, fmt.Errorf("query students by roll: %w", err)
	}
	defer rows.Close()
	return scanStudents(rows)
}

// ByDivision returns students routed to a division through the given
// membership kind.
func (r *Repository) ByDivision(ctx context.Context, divisionID string, kind DivisionKind) ([]Student, error) {
	column := "core_division_id"
	if kind == KindSpecialisation {
		column = "spec_division_id"
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, roll_number, name, core_division_id, spec_division_id
		FROM students
		WHERE `+column+` = $1
		ORDER BY roll_number
	`, divisionID)
	if err != nil {
		return nil, fmt.Errorf("query students by division: %w", err)
	}
	defer rows.Close()
	return scanStudents(rows)
}

func scanStudents(rows *sql.Rows) ([]Student, error) {
	var res []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.RollNumber, &s.Name, &s.CoreDivisionID, &s.SpecDivisionID); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// pqStringArray renders a text array literal for = ANY($1). The pgx
// stdlib driver accepts this form without importing pq array helpers.
func pqStringArray(vals []string) string {
	out := "{"
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		out += `"` + escapeArrayElem(v) + `"`
	}
	return out + "}"
}

func escapeArrayElem(v string) string {
	var b []byte
	for i := 0; i < len(v); i++ {
		if v[i] == '"' || v[i] == '\\' {
			b = append(b, '\\')
		}
		b = append(b, v[i])
	}
	return string(b)
}
