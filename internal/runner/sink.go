package runner

// Sink receives telemetry off the critical path. Implementations must
// return immediately and swallow their own failures; the runner fires
// and forgets.
type Sink interface {
	TrackTestRun(results *TestResults)
	TrackTestCase(result *EvalResult)
}

// NopSink discards all telemetry.
type NopSink struct{}

func (NopSink) TrackTestRun(*TestResults) {}

func (NopSink) TrackTestCase(*EvalResult) {}
