// Package onebot maintains the websocket connection to a OneBot v11
// implementation: it turns event frames into bus events and sends replies as
// action frames, redialling forever after the connection drops.
package onebot

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"linkrelay/internal/bus"
	"linkrelay/internal/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultReconnectDelay = 5 * time.Second
	DefaultJitterMin      = 500 * time.Millisecond
	DefaultJitterMax      = 1000 * time.Millisecond

	writeTimeout     = 5 * time.Second
	handshakeTimeout = 10 * time.Second
)

// State is the connection lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ClientConfig configures the OneBot connection.
type ClientConfig struct {
	URL            string
	Token          string            // sent as "Authorization: Bearer <token>" when set
	Bus            domain.MessageBus // receives parsed inbound events
	Events         *bus.EventBus     // optional lifecycle events
	Logger         *slog.Logger
	ReconnectDelay time.Duration        // default 5s
	Jitter         func() time.Duration // pre-send delay, default uniform 500-1000ms
	Dialer         *websocket.Dialer
}

// Client owns the single upstream connection.
type Client struct {
	url            string
	token          string
	bus            domain.MessageBus
	events         *bus.EventBus
	logger         *slog.Logger
	reconnectDelay time.Duration
	jitter         func() time.Duration
	dialer         *websocket.Dialer

	state atomic.Int32

	// mu guards conn and serializes writes; gorilla allows one writer.
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ domain.Transport = (*Client)(nil)

// NewClient creates a connection manager. Call Run to start it.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.Jitter == nil {
		cfg.Jitter = UniformJitter(DefaultJitterMin, DefaultJitterMax)
	}
	if cfg.Dialer == nil {
		cfg.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	return &Client{
		url:            cfg.URL,
		token:          cfg.Token,
		bus:            cfg.Bus,
		events:         cfg.Events,
		logger:         cfg.Logger,
		reconnectDelay: cfg.ReconnectDelay,
		jitter:         cfg.Jitter,
		dialer:         cfg.Dialer,
	}
}

// UniformJitter returns a delay source uniformly distributed in [lo, hi).
func UniformJitter(lo, hi time.Duration) func() time.Duration {
	return func() time.Duration {
		if hi <= lo {
			return lo
		}
		return lo + rand.N(hi-lo)
	}
}

// State returns the current connection state.
func (c *Client) State() State { return State(c.state.Load()) }

// Run connects and keeps reconnecting after a fixed delay until ctx is
// cancelled. It always returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		c.setState(StateConnecting, attempt)
		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("onebot dial failed", "url", c.url, "attempt", attempt, "err", err)
		} else {
			attempt = 0
			c.serve(ctx, conn)
		}
		c.setState(StateDisconnected, attempt)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Info("onebot reconnecting", "delay", c.reconnectDelay)
		timer := time.NewTimer(c.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}

// serve runs the read loop on conn until it fails or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.setState(StateConnected, 0)
	c.logger.Info("onebot connected", "url", c.url)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("onebot connection closed", "err", err)
			}
			return
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	c.emit(bus.EventFrameReceived, map[string]any{"bytes": len(data)})

	ev, reason := ParseFrame(data)
	if reason != "" {
		switch reason {
		case DropActionReply:
			c.logger.Debug("onebot action response", "frame", string(data))
		case DropNotMessage:
			// heartbeats, notices and requests
		default:
			c.logger.Debug("onebot frame dropped", "reason", reason)
		}
		c.emit(bus.EventFrameDropped, map[string]any{"reason": reason})
		return
	}
	c.bus.Publish(ev)
}

// Send waits a jitter delay and writes msg as an action frame. It reports
// false without queueing when the connection is not open at send time.
func (c *Client) Send(ctx context.Context, msg domain.OutboundMessage) bool {
	if d := c.jitter(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}

	frame, err := buildAction(msg, uuid.NewString())
	if err != nil {
		c.logger.Warn("onebot send rejected", "err", err)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.State() != StateConnected {
		c.logger.Debug("onebot send skipped, not connected", "target", msg.TargetID)
		return false
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(frame); err != nil {
		c.logger.Warn("onebot write failed", "action", frame.Action, "err", err)
		return false
	}
	c.logger.Debug("onebot action sent", "action", frame.Action, "target", msg.TargetID, "echo", frame.Echo)
	return true
}

func (c *Client) setState(s State, attempt int) {
	prev := State(c.state.Swap(int32(s)))
	if prev == s {
		return
	}
	c.emit(bus.EventConnectionState, map[string]any{"state": s.String(), "attempt": attempt})
}

func (c *Client) emit(eventType string, payload map[string]any) {
	if c.events == nil {
		return
	}
	c.events.Emit(bus.Event{Type: eventType, Source: "onebot", Payload: payload})
}
