package onebot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"linkrelay/internal/domain"
)

// Drop reasons reported for frames that do not become events.
const (
	DropInvalidJSON   = "invalid_json"
	DropNotMessage    = "not_message"
	DropActionReply   = "action_response"
	DropMessageType   = "unsupported_message_type"
	DropInvalidSender = "invalid_user_id"
	DropInvalidGroup  = "invalid_group_id"
)

// inboundFrame is the union of OneBot v11 event and action-response frames.
type inboundFrame struct {
	PostType    string          `json:"post_type"`
	MessageType string          `json:"message_type"`
	RawMessage  string          `json:"raw_message"`
	UserID      any             `json:"user_id"`
	GroupID     any             `json:"group_id"`
	Message     json.RawMessage `json:"message"`
	Time        json.Number     `json:"time"`

	Status  string `json:"status"`
	Retcode *int   `json:"retcode"`
	Echo    string `json:"echo"`
}

type segmentFrame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// actionFrame is an outbound OneBot action request.
type actionFrame struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Echo   string         `json:"echo,omitempty"`
}

// ParseFrame converts a raw websocket frame into an inbound event. When the
// frame is not a usable chat message it returns a drop reason instead.
func ParseFrame(data []byte) (domain.InboundEvent, string) {
	var f inboundFrame
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return domain.InboundEvent{}, DropInvalidJSON
	}

	if f.PostType == "" && (f.Echo != "" || f.Retcode != nil) {
		return domain.InboundEvent{}, DropActionReply
	}
	if f.PostType != domain.EventKindMessage {
		return domain.InboundEvent{}, DropNotMessage
	}

	sender, ok := domain.FormatID(f.UserID)
	if !ok {
		return domain.InboundEvent{}, DropInvalidSender
	}

	ev := domain.InboundEvent{
		Kind:     domain.EventKindMessage,
		RawText:  f.RawMessage,
		SenderID: sender,
		Time:     frameTime(f.Time),
	}

	switch f.MessageType {
	case string(domain.ChannelGroup):
		group, ok := domain.FormatID(f.GroupID)
		if !ok {
			return domain.InboundEvent{}, DropInvalidGroup
		}
		ev.ChannelKind = domain.ChannelGroup
		ev.ChannelID = group
	case string(domain.ChannelPrivate):
		ev.ChannelKind = domain.ChannelPrivate
	default:
		return domain.InboundEvent{}, DropMessageType
	}

	segments, text := parseMessage(f.Message)
	ev.Segments = segments
	if ev.RawText == "" {
		ev.RawText = text
	}
	return ev, ""
}

// parseMessage accepts both the array and the CQ-string message forms. The
// string form is also returned as text for events without raw_message.
func parseMessage(raw json.RawMessage) ([]domain.Segment, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, ""
		}
		return parseCQ(s), s
	case '[':
		var frames []segmentFrame
		if err := json.Unmarshal(raw, &frames); err != nil {
			return nil, ""
		}
		segments := make([]domain.Segment, 0, len(frames))
		for _, sf := range frames {
			segments = append(segments, domain.Segment{Type: sf.Type, Data: sf.Data})
		}
		return segments, ""
	}
	return nil, ""
}

func frameTime(n json.Number) time.Time {
	if secs, err := n.Int64(); err == nil && secs > 0 {
		return time.Unix(secs, 0)
	}
	return time.Now()
}

// buildAction renders msg as a send_group_msg or send_private_msg request.
func buildAction(msg domain.OutboundMessage, echo string) (actionFrame, error) {
	id, ok := domain.FormatID(msg.TargetID)
	if !ok {
		return actionFrame{}, fmt.Errorf("invalid target id %q", msg.TargetID)
	}
	switch msg.TargetKind {
	case domain.ChannelGroup:
		return actionFrame{
			Action: "send_group_msg",
			Params: map[string]any{"group_id": json.Number(id), "message": msg.Text},
			Echo:   echo,
		}, nil
	case domain.ChannelPrivate:
		return actionFrame{
			Action: "send_private_msg",
			Params: map[string]any{"user_id": json.Number(id), "message": msg.Text},
			Echo:   echo,
		}, nil
	default:
		return actionFrame{}, fmt.Errorf("unknown target kind %q", msg.TargetKind)
	}
}
