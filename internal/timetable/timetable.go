package timetable

import (
	"context"

	"rollcall/internal/roster"
)

// ScheduledSession is one (division, course, slot) tuple scheduled on a
// concrete date. At most one exists per (division, date, slot).
type ScheduledSession struct {
	Date         string              `json:"date"` // 2006-01-02
	DivisionID   string              `json:"division_id"`
	DivisionKind roster.DivisionKind `json:"division_kind"`
	CourseID     string              `json:"course_id"`
	Slot         int                 `json:"slot"`
	FacultyID    *string             `json:"faculty_id,omitempty"`
}

// Resolver enumerates the scheduled sessions for a date. How timetables
// are authored is not the engine's concern.
type Resolver interface {
	ScheduledFor(ctx context.Context, date string) ([]ScheduledSession, error)
}
