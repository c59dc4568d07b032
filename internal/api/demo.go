package api

import (
	"errors"
	"net/http"

	"github.com/mun0404/IRIS/internal/httputil"
	"github.com/mun0404/IRIS/internal/inspect"
	"github.com/mun0404/IRIS/internal/runstore"
)

// Demo endpoints drive the dashboard without a robot or a detection source.
// Simulated events are synthesized from the checkpoint's expected conditions
// and recorded through the same store path as live events, so everything
// downstream (snapshot, reports, archive) behaves identically.

func (s *Server) demoStart(w http.ResponseWriter, r *http.Request) {
	s.startFreshRun(w, r)
}

// demoReset is an alias of demoStart: resetting the demo is starting a fresh
// run with a new run ID.
func (s *Server) demoReset(w http.ResponseWriter, r *http.Request) {
	s.startFreshRun(w, r)
}

func (s *Server) startFreshRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	run, err := s.store.StartRun()
	if err != nil {
		httputil.InternalServerError(w, "failed to start run")
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) demoSimulatePass(w http.ResponseWriter, r *http.Request) {
	s.simulate(w, r, true)
}

func (s *Server) demoSimulateFail(w http.ResponseWriter, r *http.Request) {
	s.simulate(w, r, false)
}

// simulate records a synthetic event for the next pending checkpoint (or the
// first checkpoint when none are pending).
func (s *Server) simulate(w http.ResponseWriter, r *http.Request, pass bool) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	def, err := s.store.NextPending()
	if err != nil {
		if errors.Is(err, runstore.ErrNoRun) {
			httputil.WriteJSONError(w, http.StatusConflict, "no active run; start one first")
			return
		}
		httputil.InternalServerError(w, "failed to select checkpoint")
		return
	}

	conditions := s.syntheticConditions(def.Expected, pass)
	verdict, reason := s.evaluator.Aggregate(conditions)

	event, err := s.store.RecordEvent(runstore.EventArgs{
		CheckpointID:   def.ID,
		Conditions:     conditions,
		Verdict:        verdict,
		Reason:         reason,
		BypassThrottle: true,
	})
	if err != nil {
		httputil.InternalServerError(w, "failed to record event")
		return
	}
	httputil.WriteJSONOK(w, event)
}

// syntheticConditions fabricates condition results matching (or, for a
// simulated fault, contradicting) the checkpoint's expectations. Only gating
// conditions are overridden; non-gating results (NOT_IMPLEMENTED placeholders,
// simulated strategies) keep whatever their strategy produced. The first
// gating condition carries the fault so the aggregate verdict is FAIL.
func (s *Server) syntheticConditions(expected map[string]string, pass bool) []inspect.ConditionResult {
	conditions := s.evaluator.Evaluate(expected, nil)
	for i := range conditions {
		c := &conditions[i]
		if !s.evaluator.IsGating(c.ConditionName) {
			continue
		}

		conf := 0.85 + 0.1*s.randFloat64()
		c.Confidence = &conf
		c.Observed = c.Expected
		c.Passed = true
	}

	if !pass {
		for i := range conditions {
			c := &conditions[i]
			if !s.evaluator.IsGating(c.ConditionName) {
				continue
			}
			c.Observed = simulatedFault(c.ConditionName, c.Expected)
			c.Passed = false
			break
		}
	}
	return conditions
}

// simulatedFault picks a plausible contradicting observation for a condition.
func simulatedFault(name, expected string) string {
	switch name {
	case inspect.CondDoorState:
		if expected == inspect.DoorOpen {
			return inspect.DoorClosed
		}
		return inspect.DoorOpen
	case inspect.CondDebris, inspect.CondPathwayClearance:
		if expected == inspect.ObservedAbsent {
			return inspect.ObservedPresent
		}
		return inspect.ObservedAbsent
	default:
		return "SIMULATED_FAULT"
	}
}
