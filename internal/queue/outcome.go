package queue

// Status classifies how a worker invocation ended. Workers never let errors
// escape their boundary; they report one of these instead so schedulers and
// observability tooling can always introspect final state.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusRetrying Status = "retrying"
	StatusFailed   Status = "failed"
)

// Outcome is the structured result of one worker invocation.
type Outcome struct {
	Status Status
	Reason string
}

// Success is a benign terminal outcome. Absence results (no breaches found,
// inactive identity, already notified) land here too.
func Success() Outcome {
	return Outcome{Status: StatusSuccess}
}

// Retry marks a transient failure eligible for another attempt.
func Retry(reason string) Outcome {
	return Outcome{Status: StatusRetrying, Reason: reason}
}

// Fail is a terminal failure. Recorded, never raised.
func Fail(reason string) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason}
}
