package exchange

import (
	"sync"
	"time"

	"veil-chat/go-handoff/pkg/models"
)

// StateChangedMethod names the notification pushed for every controller
// transition; RPC clients poll or stream events under this method.
const StateChangedMethod = "exchange.state_changed"

type Event struct {
	Seq       int64                `json:"seq"`
	Method    string               `json:"method"`
	State     models.ExchangeState `json:"state"`
	Timestamp time.Time            `json:"timestamp"`
}

// Hub fans controller state changes out to subscribers and keeps a
// bounded replay buffer so a presentation process can recover missed
// transitions after a reconnect.
type Hub struct {
	mu      sync.Mutex
	nextSeq int64
	limit   int
	history []Event
	subs    map[int]chan Event
	nextSub int
}

func NewHub(limit int) *Hub {
	if limit < 1 {
		limit = 1
	}
	return &Hub{
		limit: limit,
		subs:  make(map[int]chan Event),
	}
}

func (h *Hub) Publish(state models.ExchangeState) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextSeq++
	event := Event{
		Seq:       h.nextSeq,
		Method:    StateChangedMethod,
		State:     state,
		Timestamp: time.Now().UTC(),
	}
	h.history = append(h.history, event)
	if len(h.history) > h.limit {
		h.history = append([]Event(nil), h.history[len(h.history)-h.limit:]...)
	}

	// Slow subscribers are dropped rather than blocking a transition.
	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			close(ch)
			delete(h.subs, id)
		}
	}

	return event
}

func (h *Hub) Subscribe(fromSeq int64) ([]Event, <-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	replay := make([]Event, 0)
	for _, event := range h.history {
		if event.Seq > fromSeq {
			replay = append(replay, event)
		}
	}

	id := h.nextSub
	h.nextSub++
	ch := make(chan Event, 128)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			close(sub)
			delete(h.subs, id)
		}
	}
	return replay, ch, cancel
}

// EventsSince returns the retained events after fromSeq without
// subscribing. Polling clients call it between reconnects.
func (h *Hub) EventsSince(fromSeq int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := make([]Event, 0)
	for _, event := range h.history {
		if event.Seq > fromSeq {
			events = append(events, event)
		}
	}
	return events
}

func (h *Hub) BacklogSize() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.history)
}
