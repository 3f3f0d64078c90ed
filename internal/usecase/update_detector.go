package usecase

import (
	"time"
)

// Update classifications produced by Detect.
const (
	DetectNoChange         = "NO_CHANGE"
	DetectFirstObservation = "FIRST_OBSERVATION"
	DetectNewTest          = "NEW_TEST"
)

// Detect classifies a freshly fetched latest-test date against the stored
// baseline. Pure function, no side effects.
//
// A nil latest date means the vehicle has no tests yet and never alters the
// baseline. A non-nil latest with no baseline is a first observation, which
// notifies like any other update. With both present only a strictly later
// timestamp counts: an upstream date equal to or earlier than the baseline
// is no change, which is what keeps the baseline monotonic.
func Detect(latestTestDate, storedBaseline *time.Time) string {
	if latestTestDate == nil {
		return DetectNoChange
	}
	if storedBaseline == nil {
		return DetectFirstObservation
	}
	if latestTestDate.After(*storedBaseline) {
		return DetectNewTest
	}
	return DetectNoChange
}
