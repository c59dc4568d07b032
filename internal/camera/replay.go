package camera

import (
	"context"
	"fmt"
	"time"

	"github.com/mun0404/IRIS/internal/timeutil"
)

// DefaultReplayInterval paces dev-mode frame generation.
const DefaultReplayInterval = 2 * time.Second

// ReplaySource generates synthetic frames for dev mode, cycling through the
// configured checkpoints on a fixed interval. It stands in for the robot's
// camera feed when no hardware is attached.
type ReplaySource struct {
	clock       timeutil.Clock
	interval    time.Duration
	checkpoints []string
	frames      chan Frame
}

// NewReplaySource creates a replay source cycling over the checkpoint IDs.
func NewReplaySource(clock timeutil.Clock, interval time.Duration, checkpoints []string) *ReplaySource {
	if interval <= 0 {
		interval = DefaultReplayInterval
	}
	return &ReplaySource{
		clock:       clock,
		interval:    interval,
		checkpoints: checkpoints,
		frames:      make(chan Frame),
	}
}

// Frames returns the channel replayed frames are delivered on. The channel
// closes when Run returns.
func (r *ReplaySource) Frames() <-chan Frame {
	return r.frames
}

// Run emits one frame per tick, visiting checkpoints round-robin, until the
// context is cancelled.
func (r *ReplaySource) Run(ctx context.Context) error {
	defer close(r.frames)

	if len(r.checkpoints) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C():
			id := r.checkpoints[i%len(r.checkpoints)]
			i++
			frame := Frame{
				CheckpointID: id,
				Data:         []byte(fmt.Sprintf("replay-frame:%s:%d", id, i)),
				CapturedAt:   now,
			}
			select {
			case r.frames <- frame:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
