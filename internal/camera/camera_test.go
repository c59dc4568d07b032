package camera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMuxDeliversToAllSubscribers(t *testing.T) {
	mux := NewMux()
	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()
	defer mux.Unsubscribe(id1)
	defer mux.Unsubscribe(id2)

	frame := Frame{CheckpointID: "cp-01", Data: []byte("jpeg")}
	mux.Publish(frame)

	assert.Equal(t, frame, <-ch1)
	assert.Equal(t, frame, <-ch2)
}

func TestMuxDropsFramesForSlowSubscriber(t *testing.T) {
	mux := NewMux()
	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	// Fill the buffer and then some; the overflow is dropped, not blocked on.
	for i := 0; i < subscriberBuffer+5; i++ {
		mux.Publish(Frame{CheckpointID: "cp-01"})
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			assert.Equal(t, subscriberBuffer, received)
			return
		}
	}
}

func TestMuxUnsubscribeClosesChannel(t *testing.T) {
	mux := NewMux()
	id, ch := mux.Subscribe()

	require.Equal(t, 1, mux.SubscriberCount())
	mux.Unsubscribe(id)
	require.Equal(t, 0, mux.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	mux.Unsubscribe(id)
}

func TestMuxClose(t *testing.T) {
	mux := NewMux()
	_, ch := mux.Subscribe()

	mux.Close()
	_, open := <-ch
	assert.False(t, open)

	// Publish and a second Close after closing are no-ops.
	mux.Publish(Frame{CheckpointID: "cp-01"})
	mux.Close()

	_, late := mux.Subscribe()
	_, open = <-late
	assert.False(t, open, "subscribing after close yields a closed channel")
}

func TestMonitorDrainsSourceIntoMux(t *testing.T) {
	mux := NewMux()
	id, ch := mux.Subscribe()
	defer mux.Unsubscribe(id)

	frames := make(chan Frame, 2)
	frames <- Frame{CheckpointID: "cp-01"}
	frames <- Frame{CheckpointID: "cp-02"}
	close(frames)

	err := mux.Monitor(context.Background(), frames)
	require.NoError(t, err, "a closed source ends monitoring cleanly")

	assert.Equal(t, "cp-01", (<-ch).CheckpointID)
	assert.Equal(t, "cp-02", (<-ch).CheckpointID)
}

func TestMonitorStopsOnContextCancel(t *testing.T) {
	mux := NewMux()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := mux.Monitor(ctx, make(chan Frame))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMuxConcurrentPublishAndSubscribe(t *testing.T) {
	mux := NewMux()
	done := make(chan struct{})

	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			mux.Publish(Frame{CheckpointID: "cp-01"})
		}
	}()

	for i := 0; i < 20; i++ {
		id, _ := mux.Subscribe()
		mux.Unsubscribe(id)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher did not finish; a closed subscriber blocked the mux")
	}
}
