package bus

import (
	"context"
	"testing"

	"linkrelay/internal/domain"
)

func TestInMemoryBus_PublishOrder(t *testing.T) {
	b := New(10, testEBLogger())
	defer b.Close()

	for _, id := range []string{"1", "2", "3"} {
		b.Publish(domain.InboundEvent{SenderID: id})
	}

	sub := b.Subscribe()
	for _, want := range []string{"1", "2", "3"} {
		got := <-sub
		if got.SenderID != want {
			t.Fatalf("expected sender %s, got %s", want, got.SenderID)
		}
	}
}

func TestInMemoryBus_PublishAfterClose(t *testing.T) {
	b := New(1, testEBLogger())
	b.Close()
	b.Close()

	// Must not panic.
	b.Publish(domain.InboundEvent{SenderID: "1"})
}

func TestInMemoryBus_SendOutboundWithoutHandler(t *testing.T) {
	b := New(1, testEBLogger())
	defer b.Close()

	if b.SendOutbound(context.Background(), domain.OutboundMessage{Text: "x"}) {
		t.Fatal("expected send to report false without a handler")
	}
}

func TestInMemoryBus_SendOutboundHandler(t *testing.T) {
	b := New(1, testEBLogger())
	defer b.Close()

	var got domain.OutboundMessage
	b.OnOutbound(func(_ context.Context, msg domain.OutboundMessage) bool {
		got = msg
		return true
	})

	msg := domain.OutboundMessage{TargetKind: domain.ChannelGroup, TargetID: "9", Text: "hello"}
	if !b.SendOutbound(context.Background(), msg) {
		t.Fatal("expected send to succeed")
	}
	if got != msg {
		t.Fatalf("handler received %+v, want %+v", got, msg)
	}
}
