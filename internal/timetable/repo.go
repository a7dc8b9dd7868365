package timetable

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rollcall/internal/roster"
)

// Repository resolves scheduled sessions from a weekday-pattern
// timetable stored in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Resolver = (*Repository)(nil)

// ScheduledFor expands the weekly pattern for the date's weekday into
// concrete sessions, ordered by slot then division for determinism.
func (r *Repository) ScheduledFor(ctx context.Context, date string) ([]ScheduledSession, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", date, err)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.division_id, d.kind, t.course_id, t.slot, t.faculty_id
		FROM timetable t
		JOIN divisions d ON d.id = t.division_id
		WHERE t.weekday = $1
		ORDER BY t.slot, t.division_id
	`, int(day.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("query timetable: %w", err)
	}
	defer rows.Close()

	var res []ScheduledSession
	for rows.Next() {
		s := ScheduledSession{Date: date}
		var kind string
		if err := rows.Scan(&s.DivisionID, &kind, &s.CourseID, &s.Slot, &s.FacultyID); err != nil {
			return nil, err
		}
		s.DivisionKind = roster.DivisionKind(kind)
		res = append(res, s)
	}
	return res, rows.Err()
}
