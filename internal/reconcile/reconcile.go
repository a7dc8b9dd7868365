package reconcile

import "context"

// Status is the wire-stable attendance vocabulary.
type Status string

const (
	StatusPresent Status = "P"
	StatusLate    Status = "LT" // manual only
	StatusAbsent  Status = "AB" // synthesized
	StatusLeave   Status = "P#" // approved leave, manual only
)

// Source records which writer produced an attendance row. Automated
// reconciliation never replaces a manual row.
type Source string

const (
	SourceSwipe  Source = "swipe"
	SourceManual Source = "manual"
)

// Session is one concrete occurrence of a course for a division,
// unique on (course, division, date, slot). Created lazily, never
// deleted by the engine.
type Session struct {
	ID         string `json:"id"`
	CourseID   string `json:"course_id"`
	DivisionID string `json:"division_id"`
	Date       string `json:"date"`
	Slot       int    `json:"slot"`
}

// Record is one student's attendance in one session, unique on
// (session, student).
type Record struct {
	SessionID string  `json:"session_id"`
	StudentID string  `json:"student_id"`
	Status    Status  `json:"status"`
	SwipeTime *string `json:"swipe_time,omitempty"` // HH:MM
	Source    Source  `json:"source"`
}

// Summary is the best-effort outcome of one reconciliation run. Row
// level problems land in Warnings, never abort the batch.
type Summary struct {
	TotalSwipes       int      `json:"total_swipes"`
	StudentsMatched   int      `json:"students_matched"`
	StudentsNotFound  int      `json:"students_not_found"`
	SessionsCreated   int      `json:"sessions_created"`
	AttendanceMarked  int      `json:"attendance_marked"`
	AbsentMarked      int      `json:"absent_marked"`
	LateMarked        int      `json:"late_marked"`
	DuplicatesSkipped int      `json:"duplicates_skipped"`
	Warnings          []string `json:"errors"`
}

// Store is the session/attendance persistence contract. Upserts key on
// the natural uniqueness constraints; a duplicate-key race must behave
// as "already exists, update".
type Store interface {
	// FindOrCreateSession is idempotent; created reports whether this
	// call inserted the row.
	FindOrCreateSession(ctx context.Context, courseID, divisionID, date string, slot int) (Session, bool, error)
	// UpsertAttendance writes a swipe-sourced record. changed is false
	// when the row already held the same value or is manual-protected.
	UpsertAttendance(ctx context.Context, rec Record) (bool, error)
	// FindAttendance returns nil when no record exists.
	FindAttendance(ctx context.Context, sessionID, studentID string) (*Record, error)
}
