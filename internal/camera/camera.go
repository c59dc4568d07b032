// Package camera provides an abstraction over checkpoint frame delivery with
// the ability for multiple clients to subscribe to frames from a single feed.
//
// Frames enter the mux either from the HTTP ingest endpoint (live robot) or
// from a replay source (dev mode); the per-checkpoint pipeline workers are
// the subscribers.
package camera

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Frame is one captured image for one checkpoint.
type Frame struct {
	CheckpointID string
	Data         []byte
	CapturedAt   time.Time
}

// subscriberBuffer sizes each subscriber channel. A slow subscriber drops
// frames rather than backing up the feed; the freshest frame matters more
// than a complete sequence.
const subscriberBuffer = 8

// Mux fans captured frames out to subscribers.
type Mux struct {
	mu          sync.Mutex
	subscribers map[string]chan Frame
	closed      bool
}

// NewMux creates an empty frame multiplexer.
func NewMux() *Mux {
	return &Mux{subscribers: make(map[string]chan Frame)}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe creates a new channel for receiving frames. The returned ID
// identifies the channel when unsubscribing.
func (m *Mux) Subscribe() (string, chan Frame) {
	id := randomID()
	ch := make(chan Frame, subscriberBuffer)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return id, ch
	}
	m.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (m *Mux) Unsubscribe(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.subscribers[id]; ok {
		close(ch)
		delete(m.subscribers, id)
	}
}

// Publish delivers a frame to every subscriber. Subscribers with a full
// channel are skipped so one stalled worker cannot block the feed.
func (m *Mux) Publish(frame Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for _, ch := range m.subscribers {
		select {
		case ch <- frame:
		default:
		}
	}
}

// Monitor drains the source channel into the mux until the context is
// cancelled or the channel closes.
func (m *Mux) Monitor(ctx context.Context, frames <-chan Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			m.Publish(frame)
		}
	}
}

// Close closes all subscriber channels. Publish becomes a no-op.
func (m *Mux) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
}

// SubscriberCount reports the number of live subscribers.
func (m *Mux) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}
