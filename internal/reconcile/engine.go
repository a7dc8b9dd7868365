package reconcile

import (
	"context"
	"fmt"
	"sort"

	"rollcall/internal/roster"
	"rollcall/internal/slot"
	"rollcall/internal/swipe"
	"rollcall/internal/timetable"
)

// Engine matches a batch of swipe events against the timetable and
// writes attendance. Directory and timetable are read-only during a
// run; the store is the only mutated resource and every mutation is an
// idempotent upsert, which is what makes re-runs safe.
type Engine struct {
	directory roster.Directory
	resolver  timetable.Resolver
	store     Store
}

// NewEngine wires the engine's collaborators.
func NewEngine(directory roster.Directory, resolver timetable.Resolver, store Store) *Engine {
	return &Engine{directory: directory, resolver: resolver, store: store}
}

// Reconcile runs the full pass for one parsed batch. It returns a
// best-effort summary; the error is non-nil only for fatal store or
// resolver failures and for context cancellation, in which case the
// summary covers the work done so far.
func (e *Engine) Reconcile(ctx context.Context, events []swipe.Event) (Summary, error) {
	sum := Summary{TotalSwipes: len(events)}

	byRoll, err := e.lookupStudents(ctx, events, &sum)
	if err != nil {
		return sum, err
	}

	byDate := make(map[string][]swipe.Event)
	for _, evt := range events {
		byDate[evt.Date] = append(byDate[evt.Date], evt)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	for _, date := range dates {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("reconciliation aborted at %s: %w", date, err)
		}
		scheduled, err := e.resolver.ScheduledFor(ctx, date)
		if err != nil {
			return sum, fmt.Errorf("resolve timetable for %s: %w", date, err)
		}
		for _, sched := range scheduled {
			if err := e.reconcileSession(ctx, sched, byDate[date], byRoll, &sum); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// lookupStudents resolves every distinct roll number in the batch once.
func (e *Engine) lookupStudents(ctx context.Context, events []swipe.Event, sum *Summary) (map[string]roster.Student, error) {
	distinct := make([]string, 0)
	seen := make(map[string]struct{})
	for _, evt := range events {
		if _, ok := seen[evt.RollNumber]; ok {
			continue
		}
		seen[evt.RollNumber] = struct{}{}
		distinct = append(distinct, evt.RollNumber)
	}

	students, err := e.directory.ByRollNumbers(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("student lookup: %w", err)
	}
	byRoll := make(map[string]roster.Student, len(students))
	for _, s := range students {
		byRoll[s.RollNumber] = s
	}
	sum.StudentsMatched = len(byRoll)
	for _, roll := range distinct {
		if _, ok := byRoll[roll]; !ok {
			sum.StudentsNotFound++
			sum.Warnings = append(sum.Warnings, fmt.Sprintf("roll number %s not in student directory", roll))
		}
	}
	return byRoll, nil
}

// reconcileSession applies the per-session state machine: route the
// enrolled set by division kind, match windowed swipes in input order
// with first-valid-punch-wins, then synthesize absences only when at
// least one present mark proves the upload covered this slot.
func (e *Engine) reconcileSession(ctx context.Context, sched timetable.ScheduledSession, events []swipe.Event, byRoll map[string]roster.Student, sum *Summary) error {
	relevant, err := e.directory.ByDivision(ctx, sched.DivisionID, sched.DivisionKind)
	if err != nil {
		return fmt.Errorf("division %s roster: %w", sched.DivisionID, err)
	}
	if len(relevant) == 0 {
		return nil
	}
	enrolled := make(map[string]struct{}, len(relevant))
	for _, s := range relevant {
		enrolled[s.ID] = struct{}{}
	}

	sess, created, err := e.store.FindOrCreateSession(ctx, sched.CourseID, sched.DivisionID, sched.Date, sched.Slot)
	if err != nil {
		return fmt.Errorf("session for %s/%s %s slot %d: %w", sched.CourseID, sched.DivisionID, sched.Date, sched.Slot, err)
	}
	if created {
		sum.SessionsCreated++
	}

	resolved := make(map[string]struct{})
	lateWarned := make(map[string]struct{})
	presentCount := 0

	for _, evt := range events {
		student, ok := byRoll[evt.RollNumber]
		if !ok {
			continue // counted once at lookup time
		}
		if _, ok := enrolled[student.ID]; !ok {
			continue
		}
		minute, err := slot.MinuteOfDay(evt.ClockTime)
		if err != nil {
			continue
		}
		if !slot.InWindow(sched.Slot, minute) {
			continue // may belong to another slot that day
		}
		if _, done := resolved[student.ID]; done {
			sum.DuplicatesSkipped++
			continue
		}
		if !slot.InGrace(sched.Slot, minute) {
			// Inside the window but past grace: the engine never
			// guesses lateness, the office reviews these by hand.
			if _, warned := lateWarned[student.ID]; !warned {
				lateWarned[student.ID] = struct{}{}
				sum.Warnings = append(sum.Warnings, fmt.Sprintf(
					"roll %s swiped %s for slot %d on %s: past grace, left unresolved",
					evt.RollNumber, evt.ClockTime, sched.Slot, sched.Date))
			}
			continue
		}

		swipeTime := evt.ClockTime
		changed, err := e.store.UpsertAttendance(ctx, Record{
			SessionID: sess.ID,
			StudentID: student.ID,
			Status:    StatusPresent,
			SwipeTime: &swipeTime,
			Source:    SourceSwipe,
		})
		if err != nil {
			return fmt.Errorf("mark present %s in %s: %w", student.ID, sess.ID, err)
		}
		resolved[student.ID] = struct{}{}
		presentCount++
		if changed {
			sum.AttendanceMarked++
		}
	}

	// No present mark means no proof the biometric upload covered this
	// slot; marking everyone absent would be a false signal. Leave the
	// session attendance-empty instead.
	if presentCount == 0 {
		return nil
	}

	for _, student := range relevant {
		if _, done := resolved[student.ID]; done {
			continue
		}
		changed, err := e.store.UpsertAttendance(ctx, Record{
			SessionID: sess.ID,
			StudentID: student.ID,
			Status:    StatusAbsent,
			Source:    SourceSwipe,
		})
		if err != nil {
			return fmt.Errorf("mark absent %s in %s: %w", student.ID, sess.ID, err)
		}
		if changed {
			sum.AbsentMarked++
		}
	}
	return nil
}
