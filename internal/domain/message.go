package domain

import "time"

// ChannelKind distinguishes group chats from one-to-one chats.
type ChannelKind string

const (
	ChannelGroup   ChannelKind = "group"
	ChannelPrivate ChannelKind = "private"
)

// EventKindMessage is the only inbound event kind the relay acts on.
const EventKindMessage = "message"

// Segment is one element of a rich chat message.
type Segment struct {
	Type string
	Data map[string]any
}

// InboundEvent is a single chat event received from the upstream connection.
// It is not modified after construction.
type InboundEvent struct {
	Kind        string
	RawText     string
	SenderID    string
	ChannelID   string // empty for private chats
	ChannelKind ChannelKind
	Segments    []Segment
	Time        time.Time
}

// IsGroup reports whether the event arrived in a group chat.
func (e InboundEvent) IsGroup() bool { return e.ChannelKind == ChannelGroup }

// ReplyTarget returns the kind and id a reply to this event should be sent to.
func (e InboundEvent) ReplyTarget() (ChannelKind, string) {
	if e.IsGroup() {
		return ChannelGroup, e.ChannelID
	}
	return ChannelPrivate, e.SenderID
}

// OutboundMessage is a reply queued for delivery over the upstream connection.
type OutboundMessage struct {
	TargetKind ChannelKind
	TargetID   string
	Text       string
}

// ReplyTo builds an outbound message addressed back to the origin of ev.
func ReplyTo(ev InboundEvent, text string) OutboundMessage {
	kind, id := ev.ReplyTarget()
	return OutboundMessage{TargetKind: kind, TargetID: id, Text: text}
}
