package notify

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

// subscriberBuffer bounds undelivered events per channel; slow consumers
// lose events rather than blocking producers.
const subscriberBuffer = 16

// Hub routes events to websocket subscribers by channel id. One subscriber
// per channel; a reconnect replaces the previous subscription.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[string]chan Event
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	return &Hub{log: log, subs: make(map[string]chan Event)}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Hub) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleSubscribe)
}

// Notify implements Notifier. It never blocks: events to channels with no
// subscriber or a full buffer are dropped. The send happens under the read
// lock; subscribe only closes a superseded channel under the write lock, so
// a send can never race a close.
func (h *Hub) Notify(ctx context.Context, channel string, ev Event) {
	if ctx.Err() != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	ch, ok := h.subs[channel]
	if !ok {
		return
	}

	select {
	case ch <- ev:
	default:
		h.log.Debug("dropping progress event", "channel", channel)
	}
}

// subscribe registers a channel id and returns its event stream plus a
// cleanup function.
func (h *Hub) subscribe(channel string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if prev, ok := h.subs[channel]; ok {
		close(prev)
	}
	h.subs[channel] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if h.subs[channel] == ch {
			delete(h.subs, channel)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("socketId")
	if channel == "" {
		http.Error(w, "socketId is required", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Debug("websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := h.subscribe(channel)
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case ev, ok := <-events:
			if !ok {
				// Replaced by a newer subscription for the same channel.
				conn.Close(websocket.StatusPolicyViolation, "superseded")
				return
			}
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				h.log.Debug("websocket write failed", "channel", channel, "err", err)
				return
			}
		}
	}
}
