package runner

// EventType tags a progress event.
type EventType string

const (
	// EventTestStart fires once per row before its executors dispatch.
	EventTestStart EventType = "test-start"
	// EventTestComplete fires once per settled (case, executor) result,
	// in settle order within a row.
	EventTestComplete EventType = "test-complete"
)

// StartInfo announces a row about to run. Current and Total count rows,
// 1-based.
type StartInfo struct {
	Current int
	Total   int
	Name    string
	Input   string
}

// Event is the tagged progress variant delivered to listeners. Exactly
// one of Start and Result is set, matching Type.
type Event struct {
	Type   EventType
	Start  *StartInfo
	Result *EvalResult
}

// Listener receives progress events on the runner goroutine. Rendering
// should be quick; slow listeners stall the suite.
type Listener func(Event)
