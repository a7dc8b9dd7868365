package slot

import (
	"fmt"
	"strconv"
	"strings"
)

// TimeSlot is one fixed daily class period. Times are minutes since
// midnight; the table is institution-wide and not configurable per course.
type TimeSlot struct {
	Number int
	Start  int
	End    int
}

const (
	// LeadMinutes is how early a swipe may arrive and still belong to a slot.
	LeadMinutes = 5
	// GraceMinutes after slot start within which a swipe counts as on time.
	GraceMinutes = 10
)

var table = []TimeSlot{
	{1, hm(9, 0), hm(10, 10)},
	{2, hm(10, 20), hm(11, 30)},
	{3, hm(11, 40), hm(12, 50)},
	{4, hm(13, 0), hm(14, 10)},
	{5, hm(14, 20), hm(15, 30)},
	{6, hm(15, 40), hm(16, 50)},
	{7, hm(17, 0), hm(18, 10)},
	{8, hm(18, 20), hm(19, 30)},
}

func hm(h, m int) int { return h*60 + m }

// Slots returns the full slot table in ascending order.
func Slots() []TimeSlot {
	out := make([]TimeSlot, len(table))
	copy(out, table)
	return out
}

// Window returns the start and end minute for a slot number.
func Window(n int) (start, end int, ok bool) {
	if n < 1 || n > len(table) {
		return 0, 0, false
	}
	s := table[n-1]
	return s.Start, s.End, true
}

// InWindow reports whether a clock minute falls inside a slot's matching
// window [start-lead, end].
func InWindow(n, minute int) bool {
	start, end, ok := Window(n)
	if !ok {
		return false
	}
	return minute >= start-LeadMinutes && minute <= end
}

// InGrace reports whether a clock minute is at or before start+grace.
// Callers should check InWindow first; a pre-window minute is never in grace.
func InGrace(n, minute int) bool {
	start, _, ok := Window(n)
	if !ok {
		return false
	}
	return minute >= start-LeadMinutes && minute <= start+GraceMinutes
}

// MinuteOfDay parses "HH:MM" into minutes since midnight.
func MinuteOfDay(clock string) (int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad clock time %q", clock)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("bad clock time %q", clock)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("bad clock time %q", clock)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock time %q out of range", clock)
	}
	return h*60 + m, nil
}

// Format renders minutes since midnight as "HH:MM".
func Format(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
