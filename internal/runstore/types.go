// Package runstore owns the durable state of the active inspection run: the
// append-only checkpoint event log, the latest-per-checkpoint snapshot, and
// the run record with its state machines. It is the only writer of those
// artifacts; the dashboard and report endpoints are read-only consumers.
package runstore

import "github.com/mun0404/IRIS/internal/inspect"

// Checkpoint results as persisted in snapshots and events.
const (
	ResultPending = "PENDING"
	ResultPass    = "PASS"
	ResultFail    = "FAIL"
)

// Run states. A run moves IN_PROGRESS → COMPLETED exactly once, when no
// checkpoint is left PENDING; only StartRun returns it to IN_PROGRESS (for a
// fresh run ID).
const (
	RunInProgress = "IN_PROGRESS"
	RunCompleted  = "COMPLETED"
)

// Robot states. TRIGGERED immediately after run creation, EVALUATING from
// the first recorded event, COMPLETED together with the run.
const (
	RobotTriggered  = "TRIGGERED"
	RobotEvaluating = "EVALUATING"
	RobotCompleted  = "COMPLETED"
)

// Run summary statuses.
const (
	StatusPass    = "PASS"
	StatusFail    = "FAIL"
	StatusPending = "PENDING"
	StatusUnknown = "UNKNOWN"
)

// Event is one immutable record of one checkpoint evaluation. The event log
// (events.jsonl, one JSON object per line) is the source of truth for the
// run; events are never mutated or deleted within a run.
type Event struct {
	EventID            string                    `json:"event_id"`
	TimestampUTC       string                    `json:"timestamp_utc"`
	RunID              string                    `json:"run_id"`
	RunStartUTC        string                    `json:"run_start_utc"`
	CheckpointID       string                    `json:"checkpoint_id"`
	CheckpointName     string                    `json:"checkpoint_name"`
	CheckpointSequence int                       `json:"checkpoint_sequence"`
	Result             string                    `json:"result"`
	Reason             string                    `json:"reason"`
	Conditions         []inspect.ConditionResult `json:"conditions"`
	ImageRef           string                    `json:"image_ref"`
}

// SnapshotEntry is the latest known state of one checkpoint. Entries are
// replaced wholesale on every event, never merged field by field.
type SnapshotEntry struct {
	UpdatedUTC         string                    `json:"updated_utc"`
	RunID              string                    `json:"run_id"`
	RunStartUTC        string                    `json:"run_start_utc"`
	CheckpointSequence int                       `json:"checkpoint_sequence"`
	CheckpointName     string                    `json:"checkpoint_name"`
	Result             string                    `json:"result"`
	Reason             string                    `json:"reason"`
	Image              string                    `json:"image"`
	Conditions         []inspect.ConditionResult `json:"conditions"`
}

// Snapshot maps checkpoint ID to its latest entry. Seeded with PENDING
// entries for every known checkpoint at run start so an unvisited checkpoint
// is distinguishable from a failed one; keys are never removed mid-run.
type Snapshot map[string]SnapshotEntry

// Summary is fully derived from the snapshot and recomputed after every
// event; it is never mutated independently.
type Summary struct {
	Total          int    `json:"total"`
	Passed         int    `json:"passed"`
	Failed         int    `json:"failed"`
	Pending        int    `json:"pending"`
	LastUpdatedUTC string `json:"last_updated_utc"`
	Status         string `json:"status"`
}

// RunRecord is the live run's identity and state machines.
type RunRecord struct {
	RunID        string  `json:"run_id"`
	StartTimeUTC string  `json:"start_time_utc"`
	RunState     string  `json:"run_state"`
	RobotState   string  `json:"robot_state"`
	Summary      Summary `json:"summary"`
}

// summarize derives a Summary from a snapshot. Status is UNKNOWN for an
// empty checkpoint set, PENDING while any checkpoint is unvisited, otherwise
// PASS iff nothing failed.
func summarize(snap Snapshot, lastUpdated string) Summary {
	s := Summary{Total: len(snap), LastUpdatedUTC: lastUpdated}
	for _, e := range snap {
		switch e.Result {
		case ResultPass:
			s.Passed++
		case ResultFail:
			s.Failed++
		default:
			s.Pending++
		}
	}
	switch {
	case s.Total == 0:
		s.Status = StatusUnknown
	case s.Pending > 0:
		s.Status = StatusPending
	case s.Failed > 0:
		s.Status = StatusFail
	default:
		s.Status = StatusPass
	}
	return s
}
