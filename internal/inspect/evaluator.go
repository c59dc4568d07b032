package inspect

import "sort"

// Recognised condition names.
const (
	CondDoorState        = "door_state"
	CondDebris           = "debris"
	CondPathwayClearance = "pathway_clearance"
	CondPanelPower       = "panel_power"
)

// Evaluator scores expected conditions against detection lists. The zero
// value is not usable; construct with NewEvaluator and override strategies
// for demo or test runs as needed.
type Evaluator struct {
	strategies map[string]Strategy
}

// NewEvaluator returns an evaluator with the production strategy set:
// door_state and the clearance conditions are sensor-backed; everything else
// reports NOT_IMPLEMENTED.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		strategies: map[string]Strategy{
			CondDoorState:        DoorState{},
			CondDebris:           Clearance{Name: CondDebris},
			CondPathwayClearance: Clearance{Name: CondPathwayClearance},
		},
	}
}

// SetStrategy installs or replaces the strategy for a condition name.
// Used by demo mode to swap placeholders for seeded simulated strategies.
func (e *Evaluator) SetStrategy(name string, s Strategy) {
	e.strategies[name] = s
}

// strategyFor returns the strategy for a condition name, falling back to the
// NOT_IMPLEMENTED placeholder for names we have no sensor for.
func (e *Evaluator) strategyFor(name string) Strategy {
	if s, ok := e.strategies[name]; ok {
		return s
	}
	return NotImplemented{Name: name}
}

// Evaluate produces one ConditionResult per condition key present in
// expected, and nothing for keys that are absent. Results come back in a
// deterministic order: door_state first, then the clearance conditions, then
// remaining keys lexically. For a fixed (expected, dets) input the
// sensor-backed results are bit-identical across calls; only explicitly
// simulated strategies may vary, and those draw from an injected seed.
func (e *Evaluator) Evaluate(expected map[string]string, dets []Detection) []ConditionResult {
	out := make([]ConditionResult, 0, len(expected))
	for _, name := range orderedConditionNames(expected) {
		out = append(out, e.strategyFor(name).Evaluate(expected[name], dets))
	}
	return out
}

// IsGating reports whether the named condition decides checkpoint verdicts
// under this evaluator's strategy set.
func (e *Evaluator) IsGating(name string) bool {
	return e.strategyFor(name).Gating()
}

// conditionRank fixes the evaluation order of the well-known conditions.
var conditionRank = map[string]int{
	CondDoorState:        0,
	CondDebris:           1,
	CondPathwayClearance: 1,
}

func orderedConditionNames(expected map[string]string) []string {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, iok := conditionRank[names[i]]
		rj, jok := conditionRank[names[j]]
		switch {
		case iok && jok && ri != rj:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
	return names
}
