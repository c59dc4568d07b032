package inspect

import "fmt"

// Aggregate folds condition results for one checkpoint into a single verdict.
//
// Results are partitioned by the evaluator's strategy set into gating
// (sensor-backed) and informational (placeholder/simulated). A checkpoint
// with no gating result cannot be certified and reads FAIL. Otherwise the
// verdict is PASS iff every gating result passed. The reason names the first
// failing gating result in evaluation order, so the reported cause is
// reproducible even when several conditions fail at once; it is empty on
// PASS.
func (e *Evaluator) Aggregate(results []ConditionResult) (Verdict, string) {
	return aggregate(results, e.IsGating)
}

func aggregate(results []ConditionResult, isGating func(name string) bool) (Verdict, string) {
	gatingSeen := false
	verdict := VerdictPass
	reason := ""

	for _, r := range results {
		if !isGating(r.ConditionName) {
			continue
		}
		gatingSeen = true
		if !r.Passed && verdict == VerdictPass {
			verdict = VerdictFail
			reason = FailureReason(r)
		}
	}

	if !gatingSeen {
		return VerdictFail, "no measurable condition for checkpoint"
	}
	return verdict, reason
}

// FailureReason renders the human-readable cause for a failed condition.
func FailureReason(r ConditionResult) string {
	return fmt.Sprintf("%s: expected %s, observed %s", r.ConditionName, r.Expected, r.Observed)
}
