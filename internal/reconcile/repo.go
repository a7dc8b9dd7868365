package reconcile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists sessions and attendance in Postgres. All writes
// are upserts on the natural unique keys, so concurrent uploads racing
// on the same session or record converge instead of erroring.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// FindOrCreateSession inserts the session row if missing. The unique
// constraint on (course_id, division_id, date, slot) absorbs the
// create race: a losing writer falls through to the select.
func (r *Repository) FindOrCreateSession(ctx context.Context, courseID, divisionID, date string, slot int) (Session, bool, error) {
	if courseID == "" || divisionID == "" || date == "" {
		return Session{}, false, errors.New("course, division and date required")
	}
	var sess Session
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (id, course_id, division_id, session_date, slot)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (course_id, division_id, session_date, slot) DO NOTHING
		RETURNING id, course_id, division_id, to_char(session_date, 'YYYY-MM-DD'), slot
	`, uuid.NewString(), courseID, divisionID, date, slot)
	err := row.Scan(&sess.ID, &sess.CourseID, &sess.DivisionID, &sess.Date, &sess.Slot)
	if err == nil {
		return sess, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, err
	}

	row = r.db.QueryRowContext(ctx, `
		SELECT id, course_id, division_id, to_char(session_date, 'YYYY-MM-DD'), slot
		FROM sessions
		WHERE course_id = $1 AND division_id = $2 AND session_date = $3 AND slot = $4
	`, courseID, divisionID, date, slot)
	if err := row.Scan(&sess.ID, &sess.CourseID, &sess.DivisionID, &sess.Date, &sess.Slot); err != nil {
		return Session{}, false, fmt.Errorf("fetch session after conflict: %w", err)
	}
	return sess, false, nil
}

// UpsertAttendance writes a swipe-sourced record. A row the office set
// by hand (source = manual) is never replaced; a row already holding
// the same status and swipe time is left untouched so re-uploads
// report zero new marks.
func (r *Repository) UpsertAttendance(ctx context.Context, rec Record) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (session_id, student_id, status, swipe_time, source)
		VALUES ($1, $2, $3, $4, 'swipe')
		ON CONFLICT (session_id, student_id) DO UPDATE SET
			status = EXCLUDED.status,
			swipe_time = EXCLUDED.swipe_time,
			updated_at = NOW()
		WHERE attendance.source <> 'manual'
		  AND (attendance.status IS DISTINCT FROM EXCLUDED.status
		       OR attendance.swipe_time IS DISTINCT FROM EXCLUDED.swipe_time)
	`, rec.SessionID, rec.StudentID, rec.Status, rec.SwipeTime)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpsertManual records an office correction. Manual rows always win
// and are immune to later automated re-uploads.
func (r *Repository) UpsertManual(ctx context.Context, sessionID, studentID string, status Status, swipeTime *string) error {
	switch status {
	case StatusPresent, StatusLate, StatusAbsent, StatusLeave:
	default:
		return fmt.Errorf("unknown attendance status %q", status)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (session_id, student_id, status, swipe_time, source)
		VALUES ($1, $2, $3, $4, 'manual')
		ON CONFLICT (session_id, student_id) DO UPDATE SET
			status = EXCLUDED.status,
			swipe_time = EXCLUDED.swipe_time,
			source = 'manual',
			updated_at = NOW()
	`, sessionID, studentID, status, swipeTime)
	return err
}

// FindAttendance returns nil when no record exists for the key.
func (r *Repository) FindAttendance(ctx context.Context, sessionID, studentID string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, student_id, status, swipe_time, source
		FROM attendance
		WHERE session_id = $1 AND student_id = $2
	`, sessionID, studentID)
	var rec Record
	if err := row.Scan(&rec.SessionID, &rec.StudentID, &rec.Status, &rec.SwipeTime, &rec.Source); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ListBySession returns a session's records ordered by student.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, student_id, status, swipe_time, source
		FROM attendance
		WHERE session_id = $1
		ORDER BY student_id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.SessionID, &rec.StudentID, &rec.Status, &rec.SwipeTime, &rec.Source); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// AttendanceCounts aggregates one student's absences and lates across
// every session of a course, the inputs the penalty evaluator needs.
func (r *Repository) AttendanceCounts(ctx context.Context, studentID, courseID string) (absences, lates int, err error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE a.status = 'AB'),
			COUNT(*) FILTER (WHERE a.status = 'LT')
		FROM attendance a
		JOIN sessions s ON s.id = a.session_id
		WHERE a.student_id = $1 AND s.course_id = $2
	`, studentID, courseID)
	if err := row.Scan(&absences, &lates); err != nil {
		return 0, 0, err
	}
	return absences, lates, nil
}

// RecordUpload keeps an audit row per processed file.
func (r *Repository) RecordUpload(ctx context.Context, filename string, totalRows, accepted int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO uploads (id, filename, total_rows, accepted, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), filename, totalRows, accepted, time.Now().UTC())
	return err
}
