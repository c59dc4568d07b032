package inspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func cond(name, expected, observed string, passed bool) ConditionResult {
	return ConditionResult{
		ConditionName: name,
		Expected:      expected,
		Observed:      observed,
		Passed:        passed,
	}
}

func TestAggregateEmptyGatingSetFails(t *testing.T) {
	e := NewEvaluator()

	verdict, reason := e.Aggregate(nil)
	assert.Equal(t, VerdictFail, verdict)
	assert.NotEmpty(t, reason)

	// Only informational results present: still uncertifiable.
	verdict, _ = e.Aggregate([]ConditionResult{
		cond(CondPanelPower, "ON", ObservedNotImplemented, false),
	})
	assert.Equal(t, VerdictFail, verdict)
}

func TestAggregateAllGatingPassed(t *testing.T) {
	e := NewEvaluator()

	verdict, reason := e.Aggregate([]ConditionResult{
		cond(CondDoorState, DoorClosed, DoorClosed, true),
		cond(CondDebris, ObservedAbsent, ObservedAbsent, true),
	})

	assert.Equal(t, VerdictPass, verdict)
	assert.Empty(t, reason)
}

func TestAggregateFirstFailingGatingConditionWins(t *testing.T) {
	e := NewEvaluator()

	verdict, reason := e.Aggregate([]ConditionResult{
		cond(CondDoorState, DoorClosed, DoorOpen, false),
		cond(CondDebris, ObservedAbsent, ObservedPresent, false),
	})

	assert.Equal(t, VerdictFail, verdict)
	assert.Equal(t, "door_state: expected CLOSED, observed OPEN", reason)
}

func TestAggregatePlaceholderFailureDoesNotGate(t *testing.T) {
	e := NewEvaluator()

	verdict, reason := e.Aggregate([]ConditionResult{
		cond(CondDoorState, DoorClosed, DoorClosed, true),
		cond(CondPanelPower, "ON", ObservedNotImplemented, false),
	})

	assert.Equal(t, VerdictPass, verdict)
	assert.Empty(t, reason)
}

func TestAggregateSimulatedFailureDoesNotGate(t *testing.T) {
	e := NewEvaluator()
	e.SetStrategy(CondPanelPower, NewSimulatedRandom(CondPanelPower, 7))

	verdict, _ := e.Aggregate([]ConditionResult{
		cond(CondDebris, ObservedAbsent, ObservedAbsent, true),
		cond(CondPanelPower, "ON", "SIMULATED_FAULT", false),
	})

	assert.Equal(t, VerdictPass, verdict)
}
