package penalty

// Level classifies how hard accumulated absences hit the course grade.
type Level string

const (
	LevelNone Level = "none"
	Level1    Level = "L1" // one grade step down
	Level2    Level = "L2" // two grade steps down
	Level3    Level = "L3" // straight F
)

// Thresholds holds the absence cut-offs for one credit weight.
// L1 < L2 < L3 always.
type Thresholds struct {
	L1              int `json:"l1"`
	L2              int `json:"l2"`
	L3              int `json:"l3"`
	PlannedSessions int `json:"planned_sessions"`
}

// Institutional table per credit weight. Courses outside 1..4 credits
// fall back to the 3-credit row.
var byCredit = map[int]Thresholds{
	1: {L1: 2, L2: 3, L3: 4, PlannedSessions: 9},
	2: {L1: 4, L2: 5, L3: 6, PlannedSessions: 18},
	3: {L1: 5, L2: 7, L3: 8, PlannedSessions: 26},
	4: {L1: 7, L2: 9, L3: 11, PlannedSessions: 35},
}

const defaultCredits = 3

// Info is the full evaluation result. Thresholds and the effective
// count are included so callers can render "N more absences until the
// next level" without repeating the arithmetic.
type Info struct {
	Credits    int        `json:"credits"`
	Absences   int        `json:"absences"`
	Lates      int        `json:"lates"`
	Effective  int        `json:"effective_absences"`
	Level      Level      `json:"level"`
	Impact     string     `json:"impact"`
	Thresholds Thresholds `json:"thresholds"`
}

// Evaluate maps accumulated absences and lates for a course of the
// given credit weight to a penalty level. Two lates fold into one
// effective absence. Total function: always returns a result.
func Evaluate(credits, absences, lates int) Info {
	if absences < 0 {
		absences = 0
	}
	if lates < 0 {
		lates = 0
	}
	th, ok := byCredit[credits]
	if !ok {
		th = byCredit[defaultCredits]
	}
	effective := absences + lates/2

	info := Info{
		Credits:    credits,
		Absences:   absences,
		Lates:      lates,
		Effective:  effective,
		Level:      LevelNone,
		Thresholds: th,
	}
	switch {
	case effective >= th.L3:
		info.Level = Level3
		info.Impact = "F grade"
	case effective >= th.L2:
		info.Level = Level2
		info.Impact = "2-level downgrade"
	case effective >= th.L1:
		info.Level = Level1
		info.Impact = "1-level downgrade"
	}
	return info
}

var gradeScale = []string{"A+", "A", "B+", "B", "C+", "C", "D", "F"}

// ApplyPenalty downgrades a letter grade by the level's step count,
// clamped at F. L3 forces F regardless of the starting grade. Unknown
// grades are returned unchanged.
func ApplyPenalty(grade string, level Level) string {
	if level == Level3 {
		return "F"
	}
	steps := 0
	switch level {
	case Level1:
		steps = 1
	case Level2:
		steps = 2
	default:
		return grade
	}
	for i, g := range gradeScale {
		if g == grade {
			i += steps
			if i >= len(gradeScale) {
				i = len(gradeScale) - 1
			}
			return gradeScale[i]
		}
	}
	return grade
}
