package notify

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubDeliversToSubscriber(t *testing.T) {
	h := NewHub(slog.Default())

	events, cancel := h.subscribe("sock-1")
	defer cancel()

	h.Notify(context.Background(), "sock-1", Event{Message: "pinning", Status: StatusInfo})

	select {
	case ev := <-events:
		assert.Equal(t, "pinning", ev.Message)
		assert.Equal(t, StatusInfo, ev.Status)
	default:
		t.Fatal("expected buffered event")
	}
}

func TestHubDropsWithoutSubscriber(t *testing.T) {
	h := NewHub(slog.Default())
	// Must not block or panic.
	h.Notify(context.Background(), "nobody", Event{Message: "x", Status: StatusInfo})
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub(slog.Default())
	events, cancel := h.subscribe("sock-1")
	defer cancel()

	for i := 0; i < subscriberBuffer+5; i++ {
		h.Notify(context.Background(), "sock-1", Event{Message: "m", Status: StatusInfo})
	}
	assert.Len(t, events, subscriberBuffer)
}

func TestHubRespectsCancelledContext(t *testing.T) {
	h := NewHub(slog.Default())
	events, cancel := h.subscribe("sock-1")
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	stop()
	h.Notify(ctx, "sock-1", Event{Message: "stale", Status: StatusInfo})
	assert.Empty(t, events)
}

func TestHubNotifyDuringResubscribe(t *testing.T) {
	h := NewHub(slog.Default())

	// A client reconnecting mid-upload replaces (and closes) its previous
	// subscription while the upload flow keeps notifying. Delivery must stay
	// best-effort: drop or deliver, never panic on the closed channel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			h.Notify(context.Background(), "sock-1", Event{Message: "m", Status: StatusInfo})
		}
	}()

	var cancel func()
	for i := 0; i < 1000; i++ {
		events, c := h.subscribe("sock-1")
		if cancel != nil {
			cancel()
		}
		cancel = c
		// Keep the buffer draining so sends keep landing.
		select {
		case <-events:
		default:
		}
	}
	cancel()
	<-done
}

func TestHubResubscribeReplaces(t *testing.T) {
	h := NewHub(slog.Default())

	first, _ := h.subscribe("sock-1")
	second, cancel := h.subscribe("sock-1")
	defer cancel()

	_, open := <-first
	require.False(t, open, "previous subscription should be closed")

	h.Notify(context.Background(), "sock-1", Event{Message: "hello", Status: StatusSuccess})
	assert.Len(t, second, 1)
}
