package bus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"linkrelay/internal/domain"
)

const publishTimeout = 10 * time.Second

// InMemoryBus is a Go-channel based bus between the upstream connection and
// the router. Inbound events are delivered in publish order.
type InMemoryBus struct {
	inbound  chan domain.InboundEvent
	outbound func(context.Context, domain.OutboundMessage) bool
	mu       sync.RWMutex
	closed   bool
	logger   *slog.Logger
}

// New creates a new InMemoryBus with the given buffer size.
func New(bufferSize int, logger *slog.Logger) *InMemoryBus {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InMemoryBus{
		inbound: make(chan domain.InboundEvent, bufferSize),
		logger:  logger,
	}
}

// Blocks up to 10 seconds if the bus is full instead of dropping.
func (b *InMemoryBus) Publish(ev domain.InboundEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		b.logger.Warn("attempted to publish to closed bus")
		return
	}

	select {
	case b.inbound <- ev:
	default:
		b.logger.Warn("inbound bus full, waiting...", "kind", ev.ChannelKind, "sender", ev.SenderID)
		timer := time.NewTimer(publishTimeout)
		defer timer.Stop()
		select {
		case b.inbound <- ev:
			b.logger.Info("event delivered after wait", "kind", ev.ChannelKind)
		case <-timer.C:
			b.logger.Error("event dropped: bus full for 10s",
				"kind", ev.ChannelKind,
				"sender", ev.SenderID,
			)
		}
	}
}

func (b *InMemoryBus) Subscribe() <-chan domain.InboundEvent {
	return b.inbound
}

// SendOutbound hands msg to the registered outbound handler and reports
// whether it was sent.
func (b *InMemoryBus) SendOutbound(ctx context.Context, msg domain.OutboundMessage) bool {
	b.mu.RLock()
	handler := b.outbound
	b.mu.RUnlock()

	if handler == nil {
		b.logger.Warn("no outbound handler registered", "target", msg.TargetID)
		return false
	}
	return handler(ctx, msg)
}

func (b *InMemoryBus) OnOutbound(handler func(context.Context, domain.OutboundMessage) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.outbound = handler
}

func (b *InMemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		close(b.inbound)
	}
}
