package metrics

import "time"

// ResultLabel enumerates operation outcomes for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultFailed  ResultLabel = "failed"
)

// ResultOf maps an error to its result label.
func ResultOf(err error) ResultLabel {
	if err != nil {
		return ResultFailed
	}
	return ResultSuccess
}

// Recorder defines observability hooks for document sessions. Implementations
// may forward to Prometheus or record in memory for tests.
type Recorder interface {
	// ObserveLoad records how long parsing and distilling a document took.
	ObserveLoad(format string, d time.Duration, result ResultLabel)
	// ObserveApply records one ApplyAlters call and the number of
	// alterations it consumed.
	ObserveApply(format string, alterations int, d time.Duration, result ResultLabel)
	// IncOperation counts CLI level operations (text, apply, save, watch runs).
	IncOperation(operation string, result ResultLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveLoad(string, time.Duration, ResultLabel)       {}
func (NoopRecorder) ObserveApply(string, int, time.Duration, ResultLabel) {}
func (NoopRecorder) IncOperation(string, ResultLabel)                     {}
