package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxhall/voxhall/internal/logging"
	"github.com/voxhall/voxhall/internal/transport"
	"github.com/voxhall/voxhall/internal/view"
)

func TestConsume_AbandonedStreamReleasesProducer(t *testing.T) {
	state := view.NewState(logging.Discard())
	c := NewConsumer(BufferConfig{FlushInterval: time.Millisecond}, state, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := transport.NewStream()
	sub := &submission{stream: stream}

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		stream.Emit("Hel")
		// once the consumer surfaced the first fragment, cancel mid-stream
		for state.StreamingID() == "" {
			time.Sleep(time.Millisecond)
		}
		cancel()
		// far more than the fragment channel can buffer
		for i := 0; i < 64; i++ {
			stream.Emit("lo")
		}
		stream.Close(nil)
	}()

	done := make(chan string, 1)
	go func() { done <- c.Consume(ctx, sub) }()

	select {
	case <-producerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked emitting to an abandoned stream")
	}

	assistantID := <-done
	require.NotEmpty(t, assistantID)

	// nothing read after cancellation reaches the message
	msg, ok := state.Get(assistantID)
	require.True(t, ok)
	assert.Equal(t, "Hel", msg.Text)
}

func TestConsume_CancelledBeforeFirstFragment(t *testing.T) {
	state := view.NewState(logging.Discard())
	c := NewConsumer(BufferConfig{FlushInterval: time.Millisecond}, state, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stream := transport.NewStream()
	sub := &submission{stream: stream}

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		for i := 0; i < 64; i++ {
			stream.Emit("fragment")
		}
		stream.Close(nil)
	}()

	assert.Empty(t, c.Consume(ctx, sub))
	assert.Empty(t, state.Messages())

	select {
	case <-producerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked emitting to an abandoned stream")
	}
}
