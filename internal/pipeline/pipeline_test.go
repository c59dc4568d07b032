package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mun0404/IRIS/internal/camera"
	"github.com/mun0404/IRIS/internal/checkpoint"
	"github.com/mun0404/IRIS/internal/detect"
	"github.com/mun0404/IRIS/internal/fsutil"
	"github.com/mun0404/IRIS/internal/inspect"
	"github.com/mun0404/IRIS/internal/runstore"
	"github.com/mun0404/IRIS/internal/testutil"
	"github.com/mun0404/IRIS/internal/timeutil"
)

func testDefs(t *testing.T) *checkpoint.Set {
	t.Helper()
	set, err := checkpoint.NewSet([]checkpoint.Definition{
		{ID: "cp-01", Description: "Main entrance door", Expected: map[string]string{inspect.CondDoorState: inspect.DoorClosed}},
		{ID: "cp-02", Description: "East corridor", Expected: map[string]string{inspect.CondPathwayClearance: inspect.ObservedAbsent}},
	})
	require.NoError(t, err)
	return set
}

func newTestStore(t *testing.T, defs *checkpoint.Set) *runstore.Store {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	store := runstore.New(fs, clock, "/data/current", defs, runstore.WithThrottleHz(0))
	_, err := store.StartRun()
	require.NoError(t, err)
	return store
}

func TestProcessRecordsPassingEvent(t *testing.T) {
	defs := testDefs(t)
	store := newTestStore(t, defs)
	detector := detect.NewMockDetector()
	detector.AddResult(testutil.Detections(inspect.LabelDoorClosed, 0.95)...)

	p := New(camera.NewMux(), detector, inspect.NewEvaluator(), store, defs)

	def, _ := defs.Get("cp-01")
	err := p.Process(context.Background(), def, camera.Frame{CheckpointID: "cp-01", Data: []byte("jpeg")})
	require.NoError(t, err)

	entry := store.Latest()["cp-01"]
	assert.Equal(t, runstore.ResultPass, entry.Result)
	assert.Empty(t, entry.Reason)
	assert.Equal(t, "images/cp-01.jpg", entry.Image)
	require.Len(t, entry.Conditions, 1)
	assert.Equal(t, inspect.DoorClosed, entry.Conditions[0].Observed)
}

func TestProcessRecordsFailingEvent(t *testing.T) {
	defs := testDefs(t)
	store := newTestStore(t, defs)
	detector := detect.NewMockDetector()
	detector.AddResult(inspect.Detection{ClassLabel: inspect.LabelDoorOpen, Confidence: 0.9})

	p := New(camera.NewMux(), detector, inspect.NewEvaluator(), store, defs)

	def, _ := defs.Get("cp-01")
	err := p.Process(context.Background(), def, camera.Frame{CheckpointID: "cp-01", Data: []byte("jpeg")})
	require.NoError(t, err)

	entry := store.Latest()["cp-01"]
	assert.Equal(t, runstore.ResultFail, entry.Result)
	assert.Equal(t, "door_state: expected CLOSED, observed OPEN", entry.Reason)
}

func TestProcessDetectorFailureBecomesUnknownFailEvent(t *testing.T) {
	defs := testDefs(t)
	store := newTestStore(t, defs)
	detector := detect.NewMockDetector()
	detector.AddError(errors.New("inference service returned status 503"))

	p := New(camera.NewMux(), detector, inspect.NewEvaluator(), store, defs)

	def, _ := defs.Get("cp-01")
	err := p.Process(context.Background(), def, camera.Frame{CheckpointID: "cp-01", Data: []byte("jpeg")})
	require.NoError(t, err, "a source failure is recorded, not propagated")

	entry := store.Latest()["cp-01"]
	assert.Equal(t, runstore.ResultFail, entry.Result)
	assert.Contains(t, entry.Reason, "detection source failed")
	require.Len(t, entry.Conditions, 1)
	assert.Equal(t, inspect.ObservedUnknown, entry.Conditions[0].Observed)
	assert.False(t, entry.Conditions[0].Passed)
}

func TestProcessIsThrottledAsLiveSource(t *testing.T) {
	defs := testDefs(t)
	fs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC))
	store := runstore.New(fs, clock, "/data/current", defs, runstore.WithThrottleHz(2))
	_, err := store.StartRun()
	require.NoError(t, err)

	detector := detect.NewMockDetector()
	detector.Default = []inspect.Detection{{ClassLabel: inspect.LabelDoorClosed, Confidence: 0.9}}
	p := New(camera.NewMux(), detector, inspect.NewEvaluator(), store, defs)

	def, _ := defs.Get("cp-01")
	frame := camera.Frame{CheckpointID: "cp-01", Data: []byte("jpeg")}

	require.NoError(t, p.Process(context.Background(), def, frame))
	err = p.Process(context.Background(), def, frame)
	assert.ErrorIs(t, err, runstore.ErrThrottled)
}

func TestRunProcessesPublishedFrames(t *testing.T) {
	defs := testDefs(t)
	store := newTestStore(t, defs)
	detector := detect.NewMockDetector()
	detector.Default = []inspect.Detection{{ClassLabel: inspect.LabelDoorClosed, Confidence: 0.9}}

	mux := camera.NewMux()
	p := New(mux, detector, inspect.NewEvaluator(), store, defs)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	// The subscriber registers asynchronously; publish until the event
	// lands.
	require.Eventually(t, func() bool {
		mux.Publish(camera.Frame{CheckpointID: "cp-01", Data: []byte("jpeg")})
		return store.Latest()["cp-01"].Result == runstore.ResultPass
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunIgnoresUnknownCheckpointFrames(t *testing.T) {
	defs := testDefs(t)
	store := newTestStore(t, defs)
	detector := detect.NewMockDetector()
	detector.Default = []inspect.Detection{{ClassLabel: inspect.LabelDoorClosed, Confidence: 0.9}}

	mux := camera.NewMux()
	p := New(mux, detector, inspect.NewEvaluator(), store, defs)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		mux.Publish(camera.Frame{CheckpointID: "cp-99", Data: []byte("jpeg")})
		mux.Publish(camera.Frame{CheckpointID: "cp-02", Data: []byte("jpeg")})
		return store.Latest()["cp-02"].Result != runstore.ResultPending
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, runstore.ResultPending, store.Latest()["cp-01"].Result)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}
