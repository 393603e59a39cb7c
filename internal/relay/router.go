// Package relay routes inbound chat events either to the command processor
// or through the link-summary pipeline.
package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"linkrelay/internal/bilibili"
	"linkrelay/internal/bus"
	"linkrelay/internal/command"
	"linkrelay/internal/config"
	"linkrelay/internal/domain"
	"linkrelay/internal/extract"
	"linkrelay/internal/resolve"
)

// Skip reasons carried on relay.skipped events.
const (
	SkipDisabled        = "disabled"
	SkipGroupNotAllowed = "group_not_allowed"
	SkipPrivateDisabled = "private_disabled"
	SkipUnresolved      = "unresolved"
	SkipFetchFailed     = "fetch_failed"
	SkipSendFailed      = "send_failed"
)

// Resolver maps a reference URL to a BV id.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, bool)
}

// Fetcher loads video metadata for a BV id.
type Fetcher interface {
	Fetch(ctx context.Context, bvid string) (domain.ContentMetadata, bool)
}

// RouterConfig wires the router's collaborators.
type RouterConfig struct {
	Bus      domain.MessageBus
	Store    *config.Store
	Commands *command.Processor
	Resolver Resolver
	Fetcher  Fetcher
	Events   *bus.EventBus // optional
	Logger   *slog.Logger
}

// Router consumes inbound events one at a time. Commands run inline so
// configuration changes are serialized; relay pipelines run concurrently.
type Router struct {
	bus      domain.MessageBus
	store    *config.Store
	commands *command.Processor
	resolver Resolver
	fetcher  Fetcher
	events   *bus.EventBus
	logger   *slog.Logger

	wg sync.WaitGroup
}

// NewRouter creates a router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{
		bus:      cfg.Bus,
		store:    cfg.Store,
		commands: cfg.Commands,
		resolver: cfg.Resolver,
		fetcher:  cfg.Fetcher,
		events:   cfg.Events,
		logger:   cfg.Logger,
	}
}

// Run processes events in arrival order until ctx is cancelled or the bus
// is closed, then waits for in-flight work to finish.
func (r *Router) Run(ctx context.Context) error {
	defer r.wg.Wait()

	inbound := r.bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-inbound:
			if !ok {
				return nil
			}
			r.Handle(ctx, ev)
		}
	}
}

// Handle routes a single event. It returns once any command has been
// applied; relay work continues in the background.
func (r *Router) Handle(ctx context.Context, ev domain.InboundEvent) {
	if ev.Kind != domain.EventKindMessage {
		return
	}

	if cmd, ok := command.Parse(ev.RawText, r.store.CommandPrefix()); ok {
		res := r.commands.Handle(cmd, ev.SenderID, ev.IsGroup())
		if res.ShouldReply {
			r.goSend(ctx, domain.ReplyTo(ev, res.Reply))
		}
		return
	}

	cfg := r.store.Snapshot()
	if reason := gate(cfg, r.store, ev); reason != "" {
		r.skipped(ev, reason, nil)
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.relay(ctx, ev, cfg.Signature)
	}()
}

// gate decides whether content relay applies to ev. An empty result means
// the event may be relayed.
func gate(cfg config.Config, store *config.Store, ev domain.InboundEvent) string {
	switch {
	case !cfg.Enabled:
		return SkipDisabled
	case ev.IsGroup() && !store.IsGroupAllowed(ev.ChannelID):
		return SkipGroupNotAllowed
	case !ev.IsGroup() && !cfg.PrivateEnabled:
		return SkipPrivateDisabled
	}
	return ""
}

// relay runs extract, resolve, fetch, format and send for one event. Any
// stage without a result ends the pipeline quietly.
func (r *Router) relay(ctx context.Context, ev domain.InboundEvent, signature string) {
	start := time.Now()

	ref, ok := extract.Extract(ev)
	if !ok {
		return
	}
	target := ref.URL
	if ref.NeedsNormalization {
		target = resolve.Normalize(target)
	}

	bvid, ok := r.resolver.Resolve(ctx, target)
	if !ok {
		r.skipped(ev, SkipUnresolved, map[string]any{"url": target})
		return
	}

	meta, ok := r.fetcher.Fetch(ctx, bvid)
	if !ok {
		r.skipped(ev, SkipFetchFailed, map[string]any{"bvid": bvid})
		return
	}

	text := bilibili.WithSignature(bilibili.Format(meta), signature)
	msg := domain.ReplyTo(ev, text)
	if !r.bus.SendOutbound(ctx, msg) {
		r.skipped(ev, SkipSendFailed, map[string]any{"bvid": bvid})
		return
	}

	latency := time.Since(start)
	r.logger.Info("relay sent", "bvid", bvid, "kind", msg.TargetKind, "target", msg.TargetID, "provenance", ref.Provenance, "latency", latency)
	r.emit(bus.EventRelaySent, map[string]any{
		"bvid":       meta.BVID,
		"title":      meta.Title,
		"kind":       string(msg.TargetKind),
		"target":     msg.TargetID,
		"sender":     ev.SenderID,
		"provenance": string(ref.Provenance),
		"latency":    latency,
	})
}

func (r *Router) goSend(ctx context.Context, msg domain.OutboundMessage) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if !r.bus.SendOutbound(ctx, msg) {
			r.logger.Debug("command reply not sent", "target", msg.TargetID)
		}
	}()
}

func (r *Router) skipped(ev domain.InboundEvent, reason string, extra map[string]any) {
	r.logger.Debug("relay skipped", "reason", reason, "kind", ev.ChannelKind, "channel", ev.ChannelID, "sender", ev.SenderID)
	payload := map[string]any{"reason": reason, "kind": string(ev.ChannelKind)}
	for k, v := range extra {
		payload[k] = v
	}
	r.emit(bus.EventRelaySkipped, payload)
}

func (r *Router) emit(eventType string, payload map[string]any) {
	if r.events == nil {
		return
	}
	r.events.Emit(bus.Event{Type: eventType, Source: "relay", Payload: payload})
}
