package inspect

import (
	"math/rand"
	"sync"
)

// Strategy evaluates one named condition against a detection list.
//
// Gating strategies are backed by real sensor evidence and decide the
// checkpoint verdict. Non-gating strategies exist so the event schema stays
// forward-compatible with conditions whose sensors are not wired up yet;
// their results are informational and never block or grant certification.
type Strategy interface {
	// Evaluate scores the condition given the expected value and the
	// detections from the current frame.
	Evaluate(expected string, dets []Detection) ConditionResult

	// Gating reports whether results from this strategy decide the
	// checkpoint verdict.
	Gating() bool
}

// DoorState selects the highest-confidence door detection and compares the
// mapped state against the expected value. Ties between equal confidences go
// to the detection seen first. No door detection at all reads as UNKNOWN and
// fails regardless of the expected value.
type DoorState struct{}

func (DoorState) Gating() bool { return true }

func (DoorState) Evaluate(expected string, dets []Detection) ConditionResult {
	var best *Detection
	for i := range dets {
		if !IsDoorLabel(dets[i].ClassLabel) {
			continue
		}
		if best == nil || dets[i].Confidence > best.Confidence {
			best = &dets[i]
		}
	}

	if best == nil {
		return ConditionResult{
			ConditionName: CondDoorState,
			Expected:      expected,
			Observed:      ObservedUnknown,
			Passed:        false,
		}
	}

	observed := doorStates[best.ClassLabel]
	conf := best.Confidence
	return ConditionResult{
		ConditionName: CondDoorState,
		Expected:      expected,
		Observed:      observed,
		Passed:        observed == expected,
		Confidence:    &conf,
	}
}

// Clearance treats every non-door detection as debris evidence. Observed is
// PRESENT when at least one such detection exists, ABSENT otherwise, with
// confidence the maximum over the debris detections. The rule serves both the
// debris and pathway_clearance condition names; they are one condition under
// two names.
type Clearance struct {
	// Name is the condition name to report under (CondDebris or
	// CondPathwayClearance).
	Name string
}

func (Clearance) Gating() bool { return true }

func (c Clearance) Evaluate(expected string, dets []Detection) ConditionResult {
	var maxConf *float64
	for i := range dets {
		if IsDoorLabel(dets[i].ClassLabel) {
			continue
		}
		if maxConf == nil || dets[i].Confidence > *maxConf {
			conf := dets[i].Confidence
			maxConf = &conf
		}
	}

	observed := ObservedAbsent
	if maxConf != nil {
		observed = ObservedPresent
	}
	return ConditionResult{
		ConditionName: c.Name,
		Expected:      expected,
		Observed:      observed,
		Passed:        observed == expected,
		Confidence:    maxConf,
	}
}

// NotImplemented is the production placeholder for conditions without sensor
// evidence (panel_power, indicator lights). The observed value signals
// incompleteness to operators without ever deciding the verdict.
type NotImplemented struct {
	Name string
}

func (NotImplemented) Gating() bool { return false }

func (n NotImplemented) Evaluate(expected string, _ []Detection) ConditionResult {
	return ConditionResult{
		ConditionName: n.Name,
		Expected:      expected,
		Observed:      ObservedNotImplemented,
		Passed:        false,
	}
}

// SimulatedRandom is the demo-mode stand-in for an uninstrumented condition:
// it samples a pass/fail outcome from an injected random source so demos show
// varied results while production evaluation stays fully deterministic. Like
// NotImplemented it never gates the verdict. Safe for concurrent use; the
// mutex serializes draws from the shared source.
type SimulatedRandom struct {
	Name string
	Rand *rand.Rand

	mu sync.Mutex
}

// NewSimulatedRandom creates a seeded simulated strategy for the named
// condition.
func NewSimulatedRandom(name string, seed int64) *SimulatedRandom {
	return &SimulatedRandom{Name: name, Rand: rand.New(rand.NewSource(seed))}
}

func (*SimulatedRandom) Gating() bool { return false }

func (s *SimulatedRandom) Evaluate(expected string, _ []Detection) ConditionResult {
	s.mu.Lock()
	passed := s.Rand.Intn(2) == 0
	conf := 0.5 + s.Rand.Float64()/2
	s.mu.Unlock()

	observed := expected
	if !passed {
		observed = "SIMULATED_FAULT"
	}
	return ConditionResult{
		ConditionName: s.Name,
		Expected:      expected,
		Observed:      observed,
		Passed:        passed,
		Confidence:    &conf,
	}
}
