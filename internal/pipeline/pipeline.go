// Package pipeline connects the camera feed to the run store: each captured
// frame is run through detection and condition evaluation, and the outcome is
// recorded as one checkpoint event.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mun0404/IRIS/internal/camera"
	"github.com/mun0404/IRIS/internal/checkpoint"
	"github.com/mun0404/IRIS/internal/detect"
	"github.com/mun0404/IRIS/internal/inspect"
	"github.com/mun0404/IRIS/internal/monitoring"
	"github.com/mun0404/IRIS/internal/runstore"
)

// Pipeline evaluates frames for every checkpoint in the definition set. One
// worker goroutine per checkpoint keeps slow inference on one camera from
// delaying the others; each worker holds at most one queued frame, so a
// burst collapses to the freshest capture.
type Pipeline struct {
	mux       *camera.Mux
	detector  detect.Detector
	evaluator *inspect.Evaluator
	store     *runstore.Store
	defs      *checkpoint.Set
}

// New creates a pipeline over the given feed, detector, and store.
func New(mux *camera.Mux, detector detect.Detector, evaluator *inspect.Evaluator, store *runstore.Store, defs *checkpoint.Set) *Pipeline {
	return &Pipeline{
		mux:       mux,
		detector:  detector,
		evaluator: evaluator,
		store:     store,
		defs:      defs,
	}
}

// Run subscribes to the frame feed and processes frames until the context is
// cancelled or the feed closes. It blocks; run it in its own goroutine.
func (p *Pipeline) Run(ctx context.Context) error {
	id, frames := p.mux.Subscribe()
	defer p.mux.Unsubscribe(id)

	queues := make(map[string]chan camera.Frame, p.defs.Len())
	var wg sync.WaitGroup
	for _, def := range p.defs.All() {
		q := make(chan camera.Frame, 1)
		queues[def.ID] = q
		wg.Add(1)
		go func(def checkpoint.Definition, q chan camera.Frame) {
			defer wg.Done()
			p.worker(ctx, def, q)
		}(def, q)
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			q, known := queues[frame.CheckpointID]
			if !known {
				monitoring.Logf("pipeline: dropping frame for unknown checkpoint %q", frame.CheckpointID)
				continue
			}
			// Replace a stale queued frame with the fresh one.
			select {
			case q <- frame:
			default:
				select {
				case <-q:
				default:
				}
				select {
				case q <- frame:
				default:
				}
			}
		}
	}
}

func (p *Pipeline) worker(ctx context.Context, def checkpoint.Definition, frames <-chan camera.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := p.Process(ctx, def, frame); err != nil &&
				!errors.Is(err, runstore.ErrThrottled) && !errors.Is(err, runstore.ErrNoRun) {
				monitoring.Logf("pipeline: checkpoint %s: %v", def.ID, err)
			}
		}
	}
}

// Process evaluates one frame and records the outcome. A detection-source
// failure never drops the cycle: it becomes a FAIL event with UNKNOWN
// observations so the dashboard shows the checkpoint as unverifiable rather
// than silently stale.
func (p *Pipeline) Process(ctx context.Context, def checkpoint.Definition, frame camera.Frame) error {
	dets, detErr := p.detector.Detect(ctx, frame.Data)

	var (
		conditions []inspect.ConditionResult
		verdict    inspect.Verdict
		reason     string
	)
	if detErr != nil {
		conditions = unknownConditions(def.Expected)
		verdict = inspect.VerdictFail
		reason = fmt.Sprintf("detection source failed: %v", detErr)
	} else {
		conditions = p.evaluator.Evaluate(def.Expected, dets)
		verdict, reason = p.evaluator.Aggregate(conditions)
	}

	imageRef, err := p.store.SaveImage(def.ID, frame.Data)
	if err != nil {
		// The event is still worth recording without its image.
		monitoring.Logf("pipeline: checkpoint %s: %v", def.ID, err)
		imageRef = ""
	}

	_, err = p.store.RecordEvent(runstore.EventArgs{
		CheckpointID: def.ID,
		Conditions:   conditions,
		Verdict:      verdict,
		Reason:       reason,
		ImageRef:     imageRef,
	})
	return err
}

// unknownConditions marks every expected condition UNKNOWN and failed, the
// shape an event takes when the detection source is unreachable.
func unknownConditions(expected map[string]string) []inspect.ConditionResult {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]inspect.ConditionResult, 0, len(names))
	for _, name := range names {
		out = append(out, inspect.ConditionResult{
			ConditionName: name,
			Expected:      expected[name],
			Observed:      inspect.ObservedUnknown,
			Passed:        false,
		})
	}
	return out
}
