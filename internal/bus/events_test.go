package bus

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testEBLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// --- Subscriptions ---

func TestEventBus_EmitReachesTypedAndWildcard(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var typed, all atomic.Int32
	eb.On(EventRelaySent, func(Event) { typed.Add(1) })
	eb.On(Wildcard, func(Event) { all.Add(1) })

	eb.Emit(Event{Type: EventRelaySent, Payload: map[string]any{"bvid": "BV17x411w7KC"}})
	eb.Emit(Event{Type: EventFrameDropped})

	if typed.Load() != 1 || all.Load() != 2 {
		t.Errorf("typed=%d all=%d, want 1 2", typed.Load(), all.Load())
	}
}

func TestEventBus_HandlersRunInOrder(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var order []int
	for i := 1; i <= 3; i++ {
		eb.On(EventCommandHandled, func(Event) { order = append(order, i) })
	}
	eb.Emit(Event{Type: EventCommandHandled})

	if len(order) != 3 || order[0] != 1 || order[2] != 3 {
		t.Errorf("order = %v", order)
	}
}

func TestEventBus_Off(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var count atomic.Int32
	id := eb.On(EventRelaySent, func(Event) { count.Add(1) })

	eb.Emit(Event{Type: EventRelaySent})
	eb.Off(EventRelaySent, id)
	eb.Emit(Event{Type: EventRelaySent})

	if count.Load() != 1 {
		t.Errorf("expected 1 after unsubscribe, got %d", count.Load())
	}
}

func TestEventBus_OffAfterRemovalKeepsOthers(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var a, b, c atomic.Int32
	idA := eb.On(EventRelaySent, func(Event) { a.Add(1) })
	eb.On(EventRelaySent, func(Event) { b.Add(1) })
	eb.Off(EventRelaySent, idA)
	idC := eb.On(EventRelaySent, func(Event) { c.Add(1) })
	eb.Off(EventRelaySent, idC)

	eb.Emit(Event{Type: EventRelaySent})

	if a.Load() != 0 || b.Load() != 1 || c.Load() != 0 {
		t.Errorf("counts a=%d b=%d c=%d, want 0 1 0", a.Load(), b.Load(), c.Load())
	}
}

func TestEventBus_PanicRecovery(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var after atomic.Int32
	eb.On(EventConnectionState, func(Event) { panic("boom") })
	eb.On(EventConnectionState, func(Event) { after.Add(1) })

	eb.Emit(Event{Type: EventConnectionState})

	if after.Load() != 1 {
		t.Error("handler after a panicking one was not called")
	}
}

// --- Backlog ---

func TestEventBus_Replay(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	eb.Emit(Event{Type: EventRelaySent, Timestamp: time.Now().Add(-2 * time.Hour)})
	threshold := time.Now().Add(-time.Hour)
	eb.Emit(Event{Type: EventRelaySent})
	eb.Emit(Event{Type: EventRelaySkipped})

	if got := len(eb.Replay(EventRelaySent, time.Time{})); got != 2 {
		t.Errorf("all relay.sent = %d, want 2", got)
	}
	if got := len(eb.Replay(EventRelaySent, threshold)); got != 1 {
		t.Errorf("recent relay.sent = %d, want 1", got)
	}
	if got := len(eb.Replay(Wildcard, time.Time{})); got != 3 {
		t.Errorf("wildcard = %d, want 3", got)
	}
}

func TestEventBus_BacklogLimit(t *testing.T) {
	eb := NewEventBus(testEBLogger())
	eb.limit = 5

	for i := 0; i < 10; i++ {
		eb.Emit(Event{Type: EventFrameReceived, Payload: map[string]any{"n": i}})
	}

	if eb.Len() != 5 {
		t.Fatalf("backlog = %d, want 5", eb.Len())
	}
	if first := eb.Replay(Wildcard, time.Time{})[0]; first.Payload["n"] != 5 {
		t.Errorf("oldest kept = %v, want 5", first.Payload["n"])
	}
}

func TestEventBus_LastSurvivesEviction(t *testing.T) {
	eb := NewEventBus(testEBLogger())
	eb.limit = 3

	eb.Emit(Event{Type: EventConnectionState, Payload: map[string]any{"state": "connected"}})
	for i := 0; i < 10; i++ {
		eb.Emit(Event{Type: EventFrameReceived})
	}

	if len(eb.Replay(EventConnectionState, time.Time{})) != 0 {
		t.Fatal("connection event should have left the backlog")
	}
	last, ok := eb.Last(EventConnectionState)
	if !ok || last.Payload["state"] != "connected" {
		t.Errorf("Last = %v, %v", last, ok)
	}
	if _, ok := eb.Last(EventRelaySent); ok {
		t.Error("Last reported an event type never emitted")
	}
}
