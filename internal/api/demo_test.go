package api

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mun0404/IRIS/internal/camera"
	"github.com/mun0404/IRIS/internal/checkpoint"
	"github.com/mun0404/IRIS/internal/fsutil"
	"github.com/mun0404/IRIS/internal/inspect"
	"github.com/mun0404/IRIS/internal/runstore"
	"github.com/mun0404/IRIS/internal/testutil"
	"github.com/mun0404/IRIS/internal/timeutil"
)

func TestDemoStartCreatesRun(t *testing.T) {
	f := newFixture(t)

	resp := f.serve(t, http.MethodPost, "/api/demo/start", []byte{})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)

	var run runstore.RunRecord
	decodeBody(t, resp, &run)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, runstore.RunInProgress, run.RunState)
	assert.Equal(t, 2, run.Summary.Pending)
}

func TestDemoResetStartsFreshRun(t *testing.T) {
	f := newFixture(t)

	resp := f.serve(t, http.MethodPost, "/api/demo/start", []byte{})
	var first runstore.RunRecord
	decodeBody(t, resp, &first)

	resp = f.serve(t, http.MethodPost, "/api/demo/simulate_pass", []byte{})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)

	f.clock.Advance(time.Second)
	resp = f.serve(t, http.MethodPost, "/api/demo/reset", []byte{})
	var second runstore.RunRecord
	decodeBody(t, resp, &second)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, 2, second.Summary.Pending, "reset clears all checkpoint results")
}

func TestSimulatePassWalksCheckpointsInSequence(t *testing.T) {
	f := newFixture(t)
	f.serve(t, http.MethodPost, "/api/demo/start", []byte{})

	resp := f.serve(t, http.MethodPost, "/api/demo/simulate_pass", []byte{})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)
	var event runstore.Event
	decodeBody(t, resp, &event)
	assert.Equal(t, "cp-01", event.CheckpointID)
	assert.Equal(t, runstore.ResultPass, event.Result)
	require.NotEmpty(t, event.Conditions)
	assert.True(t, event.Conditions[0].Passed)
	assert.NotNil(t, event.Conditions[0].Confidence)

	resp = f.serve(t, http.MethodPost, "/api/demo/simulate_pass", []byte{})
	decodeBody(t, resp, &event)
	assert.Equal(t, "cp-02", event.CheckpointID)

	run, ok := f.store.Run()
	require.True(t, ok)
	assert.Equal(t, runstore.RunCompleted, run.RunState)
	assert.Equal(t, runstore.StatusPass, run.Summary.Status)
}

func TestSimulateFail(t *testing.T) {
	f := newFixture(t)
	f.serve(t, http.MethodPost, "/api/demo/start", []byte{})

	resp := f.serve(t, http.MethodPost, "/api/demo/simulate_fail", []byte{})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)

	var event runstore.Event
	decodeBody(t, resp, &event)
	assert.Equal(t, "cp-01", event.CheckpointID)
	assert.Equal(t, runstore.ResultFail, event.Result)
	assert.Equal(t, "door_state: expected CLOSED, observed OPEN", event.Reason)

	entry := f.store.Latest()["cp-01"]
	assert.Equal(t, runstore.ResultFail, entry.Result)
}

func TestSimulateWrapsWhenNothingPending(t *testing.T) {
	f := newFixture(t)
	f.serve(t, http.MethodPost, "/api/demo/start", []byte{})

	f.serve(t, http.MethodPost, "/api/demo/simulate_pass", []byte{})
	f.serve(t, http.MethodPost, "/api/demo/simulate_fail", []byte{})

	// All checkpoints visited; the next simulation re-evaluates the first.
	resp := f.serve(t, http.MethodPost, "/api/demo/simulate_pass", []byte{})
	var event runstore.Event
	decodeBody(t, resp, &event)
	assert.Equal(t, "cp-01", event.CheckpointID)
}

func TestSimulateWithoutRun(t *testing.T) {
	f := newFixture(t)

	resp := f.serve(t, http.MethodPost, "/api/demo/simulate_pass", []byte{})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusConflict)
}

func TestDemoEndpointsRequirePost(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/demo/start", "/api/demo/reset", "/api/demo/simulate_pass", "/api/demo/simulate_fail"} {
		resp := f.serve(t, http.MethodGet, path, nil)
		testutil.AssertStatusCode(t, resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

// Concurrent simulations share the server's random source; every request must
// still record cleanly.
func TestSimulateConcurrentRequests(t *testing.T) {
	f := newFixture(t)
	f.serve(t, http.MethodPost, "/api/demo/start", []byte{})

	mux := f.server.ServeMux()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				rec := testutil.NewTestRecorder()
				mux.ServeHTTP(rec, testutil.NewTestPostRequest("/api/demo/simulate_pass", []byte{}))
				assert.Equal(t, http.StatusOK, rec.Result().StatusCode)
			}
		}()
	}
	wg.Wait()
}

func TestSimulateKeepsSimulatedStrategyResults(t *testing.T) {
	set, err := checkpoint.NewSet([]checkpoint.Definition{
		{ID: "cp-01", Description: "Electrical room", Expected: map[string]string{
			inspect.CondDoorState:  inspect.DoorClosed,
			inspect.CondPanelPower: "ON",
		}},
	})
	require.NoError(t, err)

	fs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	store := runstore.New(fs, clock, "/data/current", set)

	evaluator := inspect.NewEvaluator()
	evaluator.SetStrategy(inspect.CondPanelPower, inspect.NewSimulatedRandom(inspect.CondPanelPower, 7))

	f := &serverFixture{
		server: NewServer(store, set, evaluator, fs, clock, camera.NewMux(), nil),
		store:  store,
		fs:     fs,
		clock:  clock,
	}
	f.serve(t, http.MethodPost, "/api/demo/start", []byte{})

	resp := f.serve(t, http.MethodPost, "/api/demo/simulate_pass", []byte{})
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusOK)

	var event runstore.Event
	decodeBody(t, resp, &event)
	assert.Equal(t, runstore.ResultPass, event.Result, "panel_power never gates the verdict")

	var panel *inspect.ConditionResult
	for i := range event.Conditions {
		if event.Conditions[i].ConditionName == inspect.CondPanelPower {
			panel = &event.Conditions[i]
		}
	}
	require.NotNil(t, panel, "simulated strategy result survives the synthesizer")
	require.NotNil(t, panel.Confidence)
	assert.Contains(t, []string{"ON", "SIMULATED_FAULT"}, panel.Observed)
}

func TestSimulatedFaultVocabulary(t *testing.T) {
	assert.Equal(t, inspect.DoorOpen, simulatedFault(inspect.CondDoorState, inspect.DoorClosed))
	assert.Equal(t, inspect.DoorClosed, simulatedFault(inspect.CondDoorState, inspect.DoorOpen))
	assert.Equal(t, inspect.ObservedPresent, simulatedFault(inspect.CondPathwayClearance, inspect.ObservedAbsent))
	assert.Equal(t, inspect.ObservedAbsent, simulatedFault(inspect.CondDebris, inspect.ObservedPresent))
	assert.Equal(t, "SIMULATED_FAULT", simulatedFault("vibration", "NOMINAL"))
}
