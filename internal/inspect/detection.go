// Package inspect implements the condition evaluation and checkpoint
// aggregation rules for facility inspection runs.
//
// A detection source classifies objects visible at a checkpoint; Evaluate
// scores one condition per expected-condition key; Aggregate folds those
// scores into a single PASS/FAIL verdict with a deterministic failure reason.
package inspect

// Detection is a single classified object returned by a detection source.
// Detections are ephemeral: produced fresh per frame and never persisted.
type Detection struct {
	ClassLabel string     `json:"class_label"`
	Confidence float64    `json:"confidence"`
	Region     [4]float64 `json:"region"` // x1, y1, x2, y2 in pixel coordinates
}

// Door-state class labels emitted by the detection model.
const (
	LabelDoorOpen   = "door_open"
	LabelDoorClosed = "door_closed"
	LabelDoorSemi   = "door_semi"
)

// Observed door states as reported in condition results.
const (
	DoorOpen   = "OPEN"
	DoorClosed = "CLOSED"
	DoorSemi   = "SEMI"
)

// Observed values shared across condition types.
const (
	ObservedUnknown        = "UNKNOWN"
	ObservedPresent        = "PRESENT"
	ObservedAbsent         = "ABSENT"
	ObservedNotImplemented = "NOT_IMPLEMENTED"
)

// doorStates maps detection class labels to observed door states.
var doorStates = map[string]string{
	LabelDoorOpen:   DoorOpen,
	LabelDoorClosed: DoorClosed,
	LabelDoorSemi:   DoorSemi,
}

// IsDoorLabel reports whether the class label is one of the door-state labels.
func IsDoorLabel(label string) bool {
	_, ok := doorStates[label]
	return ok
}

// ConditionResult is the score for one condition at one checkpoint.
// Immutable once created; embedded in events and snapshots.
//
// The field names condition_name and passed are the canonical serialisation
// contract. Earlier revisions of the event schema carried name/pass aliases;
// those are gone.
type ConditionResult struct {
	ConditionName string   `json:"condition_name"`
	Expected      string   `json:"expected"`
	Observed      string   `json:"observed"`
	Passed        bool     `json:"passed"`
	Confidence    *float64 `json:"confidence"`
}

// Verdict is the aggregate outcome of a checkpoint evaluation.
type Verdict string

const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)
