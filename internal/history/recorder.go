package history

import (
	"context"
	"time"

	"linkrelay/internal/bus"
)

const recordTimeout = 5 * time.Second

// Attach subscribes the store to relay and command events. It returns a
// function that removes the subscriptions.
func (s *Store) Attach(events *bus.EventBus) (detach func()) {
	sentID := events.On(bus.EventRelaySent, s.onRelaySent)
	cmdID := events.On(bus.EventCommandHandled, s.onCommand)
	return func() {
		events.Off(bus.EventRelaySent, sentID)
		events.Off(bus.EventCommandHandled, cmdID)
	}
}

func (s *Store) onRelaySent(ev bus.Event) {
	p := ev.Payload
	r := Relay{
		BVID:       str(p["bvid"]),
		Title:      str(p["title"]),
		Kind:       str(p["kind"]),
		TargetID:   str(p["target"]),
		SenderID:   str(p["sender"]),
		Provenance: str(p["provenance"]),
		CreatedAt:  ev.Timestamp,
	}
	if d, ok := p["latency"].(time.Duration); ok {
		r.Latency = d
	}

	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.Record(ctx, r); err != nil {
		s.logger.Warn("history record failed", "bvid", r.BVID, "err", err)
	}
}

func (s *Store) onCommand(ev bus.Event) {
	c := CommandRecord{
		Command:   str(ev.Payload["command"]),
		SenderID:  str(ev.Payload["sender"]),
		Outcome:   str(ev.Payload["outcome"]),
		CreatedAt: ev.Timestamp,
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := s.LogCommand(ctx, c); err != nil {
		s.logger.Warn("command log failed", "command", c.Command, "err", err)
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
