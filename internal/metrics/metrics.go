package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rollcall/internal/reconcile"
)

var (
	batchesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_batches_processed_total",
		Help: "Swipe batches run through reconciliation.",
	})
	swipesSeen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_swipes_total",
		Help: "Swipe events accepted by the normalizer.",
	})
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_sessions_created_total",
		Help: "Session rows created lazily during reconciliation.",
	})
	attendanceMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_attendance_marked_total",
		Help: "Present records written from swipes.",
	})
	absentMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_absent_marked_total",
		Help: "Absent records synthesized for non-swiping students.",
	})
	duplicatesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_duplicates_skipped_total",
		Help: "Swipe events ignored because the student was already resolved.",
	})
	studentsNotFound = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rollcall_students_not_found_total",
		Help: "Distinct roll numbers with no directory match.",
	})
)

// ObserveSummary folds one reconciliation summary into the counters.
func ObserveSummary(sum reconcile.Summary) {
	batchesProcessed.Inc()
	swipesSeen.Add(float64(sum.TotalSwipes))
	sessionsCreated.Add(float64(sum.SessionsCreated))
	attendanceMarked.Add(float64(sum.AttendanceMarked))
	absentMarked.Add(float64(sum.AbsentMarked))
	duplicatesSkipped.Add(float64(sum.DuplicatesSkipped))
	studentsNotFound.Add(float64(sum.StudentsNotFound))
}
