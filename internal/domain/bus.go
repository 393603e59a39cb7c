package domain

import "context"

// MessageBus carries inbound events from the connection to the router and
// outbound replies back to the connection.
type MessageBus interface {
	Publish(ev InboundEvent)
	Subscribe() <-chan InboundEvent
	SendOutbound(ctx context.Context, msg OutboundMessage) bool
	OnOutbound(handler func(context.Context, OutboundMessage) bool)
	Close()
}

// Transport delivers outbound messages on a best-effort basis. Send reports
// whether the message was handed to the wire; false means it was dropped.
type Transport interface {
	Send(ctx context.Context, msg OutboundMessage) bool
}
