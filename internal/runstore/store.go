package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/mun0404/IRIS/internal/checkpoint"
	"github.com/mun0404/IRIS/internal/fsutil"
	"github.com/mun0404/IRIS/internal/inspect"
	"github.com/mun0404/IRIS/internal/monitoring"
	"github.com/mun0404/IRIS/internal/report"
	"github.com/mun0404/IRIS/internal/security"
	"github.com/mun0404/IRIS/internal/timeutil"
)

// File names under the current run directory.
const (
	eventsFile     = "events.jsonl"
	latestFile     = "latest.json"
	runFile        = "run.json"
	reportJSONFile = "report.json"
	reportCSVFile  = "report.csv"
	imagesDir      = "images"
)

var (
	// ErrNoRun is returned when an event arrives before any run has started.
	ErrNoRun = errors.New("no active run")

	// ErrUnknownCheckpoint is returned for events naming a checkpoint
	// outside the loaded definition set.
	ErrUnknownCheckpoint = errors.New("unknown checkpoint")

	// ErrThrottled is returned when a live event arrives faster than the
	// per-checkpoint minimum interval. Throttled events are dropped, not
	// queued; the caller simply moves on to the next frame.
	ErrThrottled = errors.New("event throttled")
)

// EventArgs carries one checkpoint evaluation into RecordEvent.
type EventArgs struct {
	CheckpointID string
	Conditions   []inspect.ConditionResult
	Verdict      inspect.Verdict
	Reason       string
	ImageRef     string

	// BypassThrottle marks demo/simulated events, which are never rate
	// limited. The throttle applies to live detection sources only.
	BypassThrottle bool
}

// Store is the single writer of the active run's durable state. Writes for
// one checkpoint are serialized behind a per-checkpoint lock; distinct
// checkpoints may record concurrently.
type Store struct {
	fs       fsutil.FileSystem
	clock    timeutil.Clock
	dir      string
	defs     *checkpoint.Set
	throttle *Throttle

	onSupersede func(RunRecord)

	mu        sync.Mutex
	cpLocks   map[string]*sync.Mutex
	run       *RunRecord
	latest    Snapshot
	lastStamp string
}

// Option configures a Store.
type Option func(*Store)

// WithThrottleHz sets the per-checkpoint live-event rate limit.
func WithThrottleHz(hz float64) Option {
	return func(s *Store) { s.throttle = NewThrottle(s.clock, hz) }
}

// WithSupersedeHook registers a callback invoked with the final state of a
// run that is about to be superseded by StartRun. Used to archive run
// history; failures inside the hook must not block the new run.
func WithSupersedeHook(fn func(RunRecord)) Option {
	return func(s *Store) { s.onSupersede = fn }
}

// New creates a Store writing under dir for the given checkpoint set.
func New(fs fsutil.FileSystem, clock timeutil.Clock, dir string, defs *checkpoint.Set, opts ...Option) *Store {
	s := &Store{
		fs:      fs,
		clock:   clock,
		dir:     dir,
		defs:    defs,
		cpLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.throttle == nil {
		s.throttle = NewThrottle(clock, DefaultThrottleHz)
	}
	return s
}

// Path accessors for the read-only consumers (API downloads, report tool).

func (s *Store) Dir() string            { return s.dir }
func (s *Store) EventsPath() string     { return filepath.Join(s.dir, eventsFile) }
func (s *Store) LatestPath() string     { return filepath.Join(s.dir, latestFile) }
func (s *Store) RunPath() string        { return filepath.Join(s.dir, runFile) }
func (s *Store) ReportJSONPath() string { return filepath.Join(s.dir, reportJSONFile) }
func (s *Store) ReportCSVPath() string  { return filepath.Join(s.dir, reportCSVFile) }
func (s *Store) ImagesDir() string      { return filepath.Join(s.dir, imagesDir) }

// Resume loads a previous run's snapshot and record from disk so a restarted
// process picks up where it left off. Missing or malformed files read as "no
// run yet" and leave the store fresh.
func (s *Store) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	runRaw, err := s.fs.ReadFile(s.RunPath())
	if err != nil {
		return false
	}
	var run RunRecord
	if err := json.Unmarshal(runRaw, &run); err != nil || run.RunID == "" {
		return false
	}

	latestRaw, err := s.fs.ReadFile(s.LatestPath())
	if err != nil {
		return false
	}
	var latest Snapshot
	if err := json.Unmarshal(latestRaw, &latest); err != nil {
		return false
	}

	s.run = &run
	s.latest = latest
	return true
}

// StartRun begins a fresh run: a new time-derived run ID, a truncated event
// log, a snapshot seeded PENDING for every known checkpoint, and a reset
// throttle. Any previous run's final state is handed to the supersede hook
// first.
func (s *Store) StartRun() (RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run != nil && s.onSupersede != nil {
		s.onSupersede(*s.run)
	}

	now := timeutil.UTCNow(s.clock)
	runID := s.newRunID()

	latest := make(Snapshot, s.defs.Len())
	for _, d := range s.defs.All() {
		latest[d.ID] = SnapshotEntry{
			UpdatedUTC:         now,
			RunID:              runID,
			RunStartUTC:        now,
			CheckpointSequence: d.Sequence,
			CheckpointName:     d.Name(),
			Result:             ResultPending,
		}
	}

	run := RunRecord{
		RunID:        runID,
		StartTimeUTC: now,
		RunState:     RunInProgress,
		RobotState:   RobotTriggered,
		Summary:      summarize(latest, now),
	}

	if err := s.fs.MkdirAll(s.ImagesDir(), 0o755); err != nil {
		return RunRecord{}, fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := s.fs.WriteFileAtomic(s.EventsPath(), nil, 0o644); err != nil {
		return RunRecord{}, fmt.Errorf("failed to truncate event log: %w", err)
	}

	s.run = &run
	s.latest = latest
	s.throttle.Reset()

	s.persistLocked()
	return run, nil
}

// newRunID derives a run ID from the clock, second resolution, with a short
// random suffix when two runs start inside the same second.
func (s *Store) newRunID() string {
	stamp := timeutil.RunStamp(s.clock)
	id := "IR-" + stamp
	if stamp == s.lastStamp {
		id += "-" + uuid.NewString()[:8]
	}
	s.lastStamp = stamp
	return id
}

// RecordEvent appends one checkpoint evaluation to the event log, replaces
// that checkpoint's snapshot entry wholesale, recomputes the summary from
// the full snapshot, and advances the run/robot state machines. Events for
// the same checkpoint are serialized; last write wins.
func (s *Store) RecordEvent(args EventArgs) (*Event, error) {
	def, ok := s.defs.Get(args.CheckpointID)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCheckpoint, args.CheckpointID)
	}

	lock := s.checkpointLock(def.ID)
	lock.Lock()
	defer lock.Unlock()

	if !args.BypassThrottle && !s.throttle.Allow(def.ID) {
		return nil, ErrThrottled
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return nil, ErrNoRun
	}

	now := timeutil.UTCNow(s.clock)
	event := Event{
		EventID:            uuid.NewString(),
		TimestampUTC:       now,
		RunID:              s.run.RunID,
		RunStartUTC:        s.run.StartTimeUTC,
		CheckpointID:       def.ID,
		CheckpointName:     def.Name(),
		CheckpointSequence: def.Sequence,
		Result:             string(args.Verdict),
		Reason:             args.Reason,
		Conditions:         args.Conditions,
		ImageRef:           args.ImageRef,
	}

	line, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	// The append is the durability point. If it fails the event is gone;
	// the snapshot is not updated so it cannot claim state the log never
	// saw.
	if err := s.fs.AppendLine(s.EventsPath(), line); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	s.latest[def.ID] = SnapshotEntry{
		UpdatedUTC:         now,
		RunID:              s.run.RunID,
		RunStartUTC:        s.run.StartTimeUTC,
		CheckpointSequence: def.Sequence,
		CheckpointName:     def.Name(),
		Result:             string(args.Verdict),
		Reason:             args.Reason,
		Image:              args.ImageRef,
		Conditions:         args.Conditions,
	}

	s.run.Summary = summarize(s.latest, now)
	s.advanceStatesLocked()
	s.persistLocked()

	return &event, nil
}

// advanceStatesLocked moves the state machines forward; they never move
// backwards within a run.
func (s *Store) advanceStatesLocked() {
	if s.run.RobotState == RobotTriggered {
		s.run.RobotState = RobotEvaluating
	}
	if s.run.Summary.Pending == 0 && s.run.Summary.Total > 0 {
		s.run.RunState = RunCompleted
		s.run.RobotState = RobotCompleted
	}
}

// persistLocked rewrites latest.json, run.json, and the report exports.
// Failures here are logged, never fatal: the in-memory state is
// authoritative for the cycle and the next successful write self-heals
// because the summary is always recomputed from the full snapshot.
func (s *Store) persistLocked() {
	if latest, err := json.MarshalIndent(s.latest, "", "  "); err != nil {
		monitoring.Logf("runstore: failed to marshal snapshot: %v", err)
	} else if err := s.fs.WriteFileAtomic(s.LatestPath(), latest, 0o644); err != nil {
		monitoring.Logf("runstore: failed to write %s: %v", latestFile, err)
	}

	if run, err := json.MarshalIndent(s.run, "", "  "); err != nil {
		monitoring.Logf("runstore: failed to marshal run record: %v", err)
	} else if err := s.fs.WriteFileAtomic(s.RunPath(), run, 0o644); err != nil {
		monitoring.Logf("runstore: failed to write %s: %v", runFile, err)
	}

	if err := report.WriteFiles(s.fs, s.EventsPath(), s.ReportJSONPath(), s.ReportCSVPath()); err != nil {
		monitoring.Logf("runstore: failed to refresh report exports: %v", err)
	}
}

func (s *Store) checkpointLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.cpLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.cpLocks[id] = lock
	}
	return lock
}

// ReadLatest returns the current snapshot file bytes. Reads are pure: two
// calls with no intervening event return byte-identical results. Before any
// run the result is nil.
func (s *Store) ReadLatest() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.fs.ReadFile(s.LatestPath())
	if err != nil {
		return nil
	}
	return data
}

// ReadRun returns the current run record file bytes, nil before any run.
func (s *Store) ReadRun() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.fs.ReadFile(s.RunPath())
	if err != nil {
		return nil
	}
	return data
}

// Run returns a copy of the live run record.
func (s *Store) Run() (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == nil {
		return RunRecord{}, false
	}
	return *s.run, true
}

// Latest returns a copy of the live snapshot.
func (s *Store) Latest() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(Snapshot, len(s.latest))
	for k, v := range s.latest {
		out[k] = v
	}
	return out
}

// NextPending selects the next checkpoint for demo simulation: the
// lowest-sequence checkpoint still PENDING, wrapping to the first checkpoint
// when none are pending.
func (s *Store) NextPending() (checkpoint.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return checkpoint.Definition{}, ErrNoRun
	}

	defs := s.defs.All()
	if len(defs) == 0 {
		return checkpoint.Definition{}, fmt.Errorf("no checkpoints defined")
	}
	for _, d := range defs {
		if entry, ok := s.latest[d.ID]; ok && entry.Result == ResultPending {
			return d, nil
		}
	}
	return defs[0], nil
}

// SaveImage stores the most recent frame for a checkpoint, overwriting the
// previous one, and returns the relative reference recorded on events.
func (s *Store) SaveImage(checkpointID string, data []byte) (string, error) {
	name := security.SanitizeFilename(checkpointID) + ".jpg"
	path := filepath.Join(s.ImagesDir(), name)
	if err := s.fs.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to save image for %s: %w", checkpointID, err)
	}
	return filepath.Join(imagesDir, name), nil
}
