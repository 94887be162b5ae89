package recorder

import "IndexTracker/internal/tracker"

// Pair outcome labels stored with each result.
const (
	StatusOK      = "OK"
	StatusStale   = "STALE" // charted from stored data after a failed update
	StatusSkipped = "SKIPPED"
	StatusFailed  = "FAILED"
)

// Recorder persists batch history for later analysis.
type Recorder interface {
	RecordBatch(sum *tracker.Summary) error
	Close() error
}

// Status classifies a pair result.
func Status(r tracker.PairResult) string {
	switch {
	case r.Err != nil:
		return StatusFailed
	case r.Skipped:
		return StatusSkipped
	case r.Stale():
		return StatusStale
	default:
		return StatusOK
	}
}
