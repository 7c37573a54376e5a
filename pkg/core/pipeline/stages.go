package pipeline

import "fmt"

// Stage is one step of the extraction state machine. Transitions are strictly
// sequential; FAILED is terminal and reachable from any step.
type Stage string

const (
	StageFetching    Stage = "FETCHING"
	StageResolving   Stage = "RESOLVING"
	StageReconciling Stage = "RECONCILING"
	StageAssembling  Stage = "ASSEMBLING"
	StageClassifying Stage = "CLASSIFYING"
	StageDone        Stage = "DONE"
	StageFailed      Stage = "FAILED"
)

// ExtractionFailure names the stage that killed an extraction and why. No
// automatic retry of partial work happens here; retries belong to the caller.
type ExtractionFailure struct {
	Stage  Stage  `json:"stage"`
	Reason string `json:"reason"`
	Err    error  `json:"-"`
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extraction failed at %s: %s", e.Stage, e.Reason)
}

func (e *ExtractionFailure) Unwrap() error { return e.Err }

func fail(stage Stage, reason string, err error) *ExtractionFailure {
	return &ExtractionFailure{Stage: stage, Reason: reason, Err: err}
}
