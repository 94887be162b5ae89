package recorder

import "IndexTracker/internal/tracker"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordBatch(_ *tracker.Summary) error { return nil }
func (n *NoopRecorder) Close() error                          { return nil }
