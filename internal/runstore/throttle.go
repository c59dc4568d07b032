package runstore

import (
	"sync"
	"time"

	"github.com/mun0404/IRIS/internal/timeutil"
)

// DefaultThrottleHz is the default maximum live-event rate per checkpoint.
const DefaultThrottleHz = 2.0

// Throttle enforces a minimum inter-event interval per checkpoint. Events
// arriving faster than the interval for the same checkpoint are dropped, not
// queued: the freshest frame always wins over a backlog of stale ones. Demo
// events bypass the gate entirely.
type Throttle struct {
	mu       sync.Mutex
	clock    timeutil.Clock
	interval time.Duration
	last     map[string]time.Time
}

// NewThrottle creates a throttle allowing at most hz events per second per
// checkpoint. hz <= 0 disables throttling.
func NewThrottle(clock timeutil.Clock, hz float64) *Throttle {
	var interval time.Duration
	if hz > 0 {
		interval = time.Duration(float64(time.Second) / hz)
	}
	return &Throttle{
		clock:    clock,
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

// Allow reports whether an event for the checkpoint may proceed now, and if
// so records the event time.
func (t *Throttle) Allow(checkpointID string) bool {
	if t.interval <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if last, ok := t.last[checkpointID]; ok && now.Sub(last) < t.interval {
		return false
	}
	t.last[checkpointID] = now
	return true
}

// Reset clears all recorded event times. Called when a new run starts.
func (t *Throttle) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = make(map[string]time.Time)
}
