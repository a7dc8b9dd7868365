package reconcile

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"rollcall/internal/roster"
	"rollcall/internal/swipe"
	"rollcall/internal/timetable"
)

// ── in-memory collaborators ──

type memDirectory struct {
	students []roster.Student
}

func (m *memDirectory) ByRollNumbers(_ context.Context, rolls []string) ([]roster.Student, error) {
	want := make(map[string]struct{}, len(rolls))
	for _, r := range rolls {
		want[r] = struct{}{}
	}
	var res []roster.Student
	for _, s := range m.students {
		if _, ok := want[s.RollNumber]; ok {
			res = append(res, s)
		}
	}
	return res, nil
}

func (m *memDirectory) ByDivision(_ context.Context, divisionID string, kind roster.DivisionKind) ([]roster.Student, error) {
	var res []roster.Student
	for _, s := range m.students {
		var member *string
		if kind == roster.KindCore {
			member = s.CoreDivisionID
		} else {
			member = s.SpecDivisionID
		}
		if member != nil && *member == divisionID {
			res = append(res, s)
		}
	}
	return res, nil
}

type memResolver struct {
	sessions map[string][]timetable.ScheduledSession
}

func (m *memResolver) ScheduledFor(_ context.Context, date string) ([]timetable.ScheduledSession, error) {
	return m.sessions[date], nil
}

type memStore struct {
	sessions map[string]Session // natural key → session
	records  map[string]Record  // sessionID|studentID → record
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: make(map[string]Session),
		records:  make(map[string]Record),
	}
}

func (m *memStore) FindOrCreateSession(_ context.Context, courseID, divisionID, date string, slotNum int) (Session, bool, error) {
	key := fmt.Sprintf("%s|%s|%s|%d", courseID, divisionID, date, slotNum)
	if sess, ok := m.sessions[key]; ok {
		return sess, false, nil
	}
	m.nextID++
	sess := Session{
		ID:         fmt.Sprintf("sess-%d", m.nextID),
		CourseID:   courseID,
		DivisionID: divisionID,
		Date:       date,
		Slot:       slotNum,
	}
	m.sessions[key] = sess
	return sess, true, nil
}

func (m *memStore) UpsertAttendance(_ context.Context, rec Record) (bool, error) {
	key := rec.SessionID + "|" + rec.StudentID
	if prev, ok := m.records[key]; ok {
		if prev.Source == SourceManual {
			return false, nil
		}
		if prev.Status == rec.Status && eqStr(prev.SwipeTime, rec.SwipeTime) {
			return false, nil
		}
	}
	rec.Source = SourceSwipe
	m.records[key] = rec
	return true, nil
}

func (m *memStore) FindAttendance(_ context.Context, sessionID, studentID string) (*Record, error) {
	if rec, ok := m.records[sessionID+"|"+studentID]; ok {
		return &rec, nil
	}
	return nil, nil
}

func (m *memStore) setManual(sessionID, studentID string, status Status) {
	m.records[sessionID+"|"+studentID] = Record{
		SessionID: sessionID, StudentID: studentID, Status: status, Source: SourceManual,
	}
}

func eqStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// ── fixtures ──

const testDate = "2025-08-18" // a Monday

func ptr(s string) *string { return &s }

func fixtureDirectory() *memDirectory {
	return &memDirectory{students: []roster.Student{
		{ID: "st-1", RollNumber: "R001", CoreDivisionID: ptr("div-A")},
		{ID: "st-2", RollNumber: "R002", CoreDivisionID: ptr("div-A")},
		{ID: "st-3", RollNumber: "R003", CoreDivisionID: ptr("div-A"), SpecDivisionID: ptr("div-F")},
		{ID: "st-4", RollNumber: "R004", CoreDivisionID: ptr("div-B"), SpecDivisionID: ptr("div-F")},
	}}
}

func coreSession(slotNum int) timetable.ScheduledSession {
	return timetable.ScheduledSession{
		Date: testDate, DivisionID: "div-A", DivisionKind: roster.KindCore,
		CourseID: "crs-math", Slot: slotNum,
	}
}

func event(roll, clock string) swipe.Event {
	ts, _ := time.Parse("2006-01-02 15:04", testDate+" "+clock)
	return swipe.Event{
		RollNumber: roll, Timestamp: ts, Date: testDate, ClockTime: clock,
	}
}

func run(t *testing.T, eng *Engine, events []swipe.Event) Summary {
	t.Helper()
	sum, err := eng.Reconcile(context.Background(), events)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	return sum
}

// ── tests ──

func TestPresentWithinGraceAbsentSynthesized(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {coreSession(1)},
	}}, store)

	sum := run(t, eng, []swipe.Event{event("R001", "09:02")})

	if sum.SessionsCreated != 1 || sum.AttendanceMarked != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	// R002 and R003 are enrolled in div-A and did not swipe.
	if sum.AbsentMarked != 2 {
		t.Fatalf("AbsentMarked = %d, want 2: %+v", sum.AbsentMarked, sum)
	}
	rec, _ := store.FindAttendance(context.Background(), "sess-1", "st-1")
	if rec == nil || rec.Status != StatusPresent || rec.SwipeTime == nil || *rec.SwipeTime != "09:02" {
		t.Fatalf("present record: %+v", rec)
	}
	rec, _ = store.FindAttendance(context.Background(), "sess-1", "st-2")
	if rec == nil || rec.Status != StatusAbsent || rec.SwipeTime != nil {
		t.Fatalf("absent record: %+v", rec)
	}
}

func TestNoSwipeNoAbsent(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {coreSession(1)},
	}}, store)

	// The only swipe is outside slot 1's window entirely.
	sum := run(t, eng, []swipe.Event{event("R001", "12:00")})

	if sum.AttendanceMarked != 0 || sum.AbsentMarked != 0 {
		t.Fatalf("records written for uncovered session: %+v", sum)
	}
	if len(store.records) != 0 {
		t.Fatalf("store has %d records, want 0", len(store.records))
	}
	// Session row itself was still created (flagged, attendance-empty).
	if sum.SessionsCreated != 1 {
		t.Fatalf("SessionsCreated = %d", sum.SessionsCreated)
	}
}

func TestPastGraceLeftUnresolved(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {coreSession(1)},
	}}, store)

	// 09:10 is the grace edge (present); 09:11 is past it.
	sum := run(t, eng, []swipe.Event{event("R001", "09:11"), event("R002", "09:10")})

	if rec, _ := store.FindAttendance(context.Background(), "sess-1", "st-1"); rec != nil && rec.Status == StatusPresent {
		t.Fatalf("past-grace swipe auto-resolved: %+v", rec)
	}
	rec, _ := store.FindAttendance(context.Background(), "sess-1", "st-2")
	if rec == nil || rec.Status != StatusPresent {
		t.Fatalf("grace-edge swipe not present: %+v", rec)
	}
	found := false
	for _, w := range sum.Warnings {
		if strings.Contains(w, "past grace") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no past-grace warning in %v", sum.Warnings)
	}
	// R001 did not resolve, so with one present mark they are absent.
	rec, _ = store.FindAttendance(context.Background(), "sess-1", "st-1")
	if rec == nil || rec.Status != StatusAbsent {
		t.Fatalf("unresolved late student should fall to AB: %+v", rec)
	}
}

func TestFirstSwipeWins(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {coreSession(1)},
	}}, store)

	sum := run(t, eng, []swipe.Event{event("R001", "09:02"), event("R001", "09:04")})

	if sum.DuplicatesSkipped != 1 {
		t.Fatalf("DuplicatesSkipped = %d, want 1", sum.DuplicatesSkipped)
	}
	rec, _ := store.FindAttendance(context.Background(), "sess-1", "st-1")
	if rec == nil || *rec.SwipeTime != "09:02" {
		t.Fatalf("first punch did not win: %+v", rec)
	}
}

func TestIdempotentRerun(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {coreSession(1)},
	}}, store)

	batch := []swipe.Event{event("R001", "09:02"), event("R001", "09:04"), event("R002", "09:05")}
	first := run(t, eng, batch)
	recordsAfterFirst := len(store.records)

	second := run(t, eng, batch)

	if second.SessionsCreated != 0 || second.AttendanceMarked != 0 || second.AbsentMarked != 0 {
		t.Fatalf("second run not idempotent: %+v (first: %+v)", second, first)
	}
	if len(store.records) != recordsAfterFirst {
		t.Fatalf("record count changed on rerun: %d → %d", recordsAfterFirst, len(store.records))
	}
}

func TestManualRecordSurvivesReupload(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {coreSession(1)},
	}}, store)

	run(t, eng, []swipe.Event{event("R001", "09:02")})
	// Office corrects R002 to approved leave.
	store.setManual("sess-1", "st-2", StatusLeave)

	run(t, eng, []swipe.Event{event("R001", "09:02")})

	rec, _ := store.FindAttendance(context.Background(), "sess-1", "st-2")
	if rec == nil || rec.Status != StatusLeave || rec.Source != SourceManual {
		t.Fatalf("manual record overwritten: %+v", rec)
	}
}

func TestDivisionRouting(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {
			coreSession(1),
			{Date: testDate, DivisionID: "div-F", DivisionKind: roster.KindSpecialisation,
				CourseID: "crs-elec", Slot: 1},
		},
	}}, store)

	// R003 is core div-A and spec div-F; a single punch is relevant to
	// both scheduled sessions in the same slot.
	sum := run(t, eng, []swipe.Event{event("R003", "09:01"), event("R004", "09:03")})

	var routes []string
	for key := range store.records {
		if strings.HasSuffix(key, "|st-3") {
			routes = append(routes, key)
		}
	}
	if len(routes) != 2 {
		t.Fatalf("st-3 has %d attendance rows, want 2 (core + spec): %v", len(routes), store.records)
	}
	if sum.SessionsCreated != 2 {
		t.Fatalf("SessionsCreated = %d, want 2", sum.SessionsCreated)
	}
}

func TestUnknownRollCounted(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {coreSession(1)},
	}}, store)

	sum := run(t, eng, []swipe.Event{event("GHOST", "09:02"), event("R001", "09:03")})

	if sum.StudentsNotFound != 1 || sum.StudentsMatched != 1 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestCancelledContextReturnsPartial(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {coreSession(1)},
	}}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Reconcile(ctx, []swipe.Event{event("R001", "09:02")})
	if err == nil {
		t.Fatal("cancelled run returned nil error")
	}
}

func TestEmptyDivisionSkipped(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(fixtureDirectory(), &memResolver{sessions: map[string][]timetable.ScheduledSession{
		testDate: {{Date: testDate, DivisionID: "div-ZZ", DivisionKind: roster.KindCore,
			CourseID: "crs-x", Slot: 1}},
	}}, store)

	sum := run(t, eng, []swipe.Event{event("R001", "09:02")})
	if sum.SessionsCreated != 0 || len(store.sessions) != 0 {
		t.Fatalf("session created for empty division: %+v", sum)
	}
}
