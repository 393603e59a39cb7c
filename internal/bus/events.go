package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Lifecycle event types.
const (
	EventFrameReceived   = "frame.received"
	EventFrameDropped    = "frame.dropped"
	EventCommandHandled  = "command.handled"
	EventRelaySent       = "relay.sent"
	EventRelaySkipped    = "relay.skipped"
	EventConnectionState = "connection.state"
	EventConfigChanged   = "config.changed"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

const defaultHistorySize = 1000

// Event is a relay lifecycle notification.
type Event struct {
	Type      string
	Source    string // "onebot", "relay", "command"
	Payload   map[string]any
	Timestamp time.Time
}

// EventHandler receives events synchronously on the emitting goroutine.
type EventHandler func(Event)

type subscription struct {
	id      string
	handler EventHandler
}

// EventBus fans lifecycle events out to subscribers (history, metrics) and
// keeps a bounded backlog plus the latest event of each type for the status
// command.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[string][]subscription
	nextID  int
	backlog []Event
	limit   int
	latest  map[string]Event
	logger  *slog.Logger
}

// NewEventBus creates an EventBus keeping the last 1000 events.
func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		subs:   make(map[string][]subscription),
		limit:  defaultHistorySize,
		latest: make(map[string]Event),
		logger: logger,
	}
}

// On subscribes handler to eventType, or to everything with Wildcard. The
// returned id is unique for the life of the bus.
func (eb *EventBus) On(eventType string, handler EventHandler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := eventType + "#" + strconv.Itoa(eb.nextID)
	eb.subs[eventType] = append(eb.subs[eventType], subscription{id: id, handler: handler})
	return id
}

// Off removes the subscription with the given id.
func (eb *EventBus) Off(eventType, id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	subs := eb.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			eb.subs[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Emit records event and calls every matching handler in subscription
// order. A panicking handler is logged and skipped.
func (eb *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.Lock()
	if len(eb.backlog) >= eb.limit {
		eb.backlog = eb.backlog[len(eb.backlog)-eb.limit+1:]
	}
	eb.backlog = append(eb.backlog, event)
	eb.latest[event.Type] = event
	targets := make([]subscription, 0, len(eb.subs[event.Type])+len(eb.subs[Wildcard]))
	targets = append(targets, eb.subs[event.Type]...)
	targets = append(targets, eb.subs[Wildcard]...)
	eb.mu.Unlock()

	for _, s := range targets {
		eb.dispatch(s, event)
	}
}

func (eb *EventBus) dispatch(s subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", event.Type, "handler", s.id, "panic", r)
		}
	}()
	s.handler(event)
}

// Replay returns backlog events of eventType (or all, with Wildcard) at or
// after since, oldest first.
func (eb *EventBus) Replay(eventType string, since time.Time) []Event {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	var out []Event
	for _, e := range eb.backlog {
		if e.Timestamp.Before(since) {
			continue
		}
		if eventType == Wildcard || e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the most recent event of eventType. Unlike the backlog it is
// never evicted.
func (eb *EventBus) Last(eventType string) (Event, bool) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	e, ok := eb.latest[eventType]
	return e, ok
}

// Len returns the number of events in the backlog.
func (eb *EventBus) Len() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.backlog)
}
