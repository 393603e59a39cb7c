package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"linkrelay/internal/bus"
)

// Attach updates the pre-defined metrics from lifecycle events. It returns
// a function that removes the subscription.
func Attach(events *bus.EventBus) (detach func()) {
	var dialled atomic.Bool
	id := events.On(bus.Wildcard, func(ev bus.Event) {
		switch ev.Type {
		case bus.EventFrameReceived:
			FramesReceived.Inc()
		case bus.EventFrameDropped:
			FramesDropped(payloadString(ev, "reason")).Inc()
		case bus.EventCommandHandled:
			CommandsHandled.Inc()
		case bus.EventConfigChanged:
			ConfigChanges.Inc()
		case bus.EventRelaySkipped:
			RelaysSkipped(payloadString(ev, "reason")).Inc()
		case bus.EventRelaySent:
			RelaysSent.Inc()
			if d, ok := ev.Payload["latency"].(time.Duration); ok {
				RelayLatency.Observe(d.Seconds())
			}
		case bus.EventConnectionState:
			switch payloadString(ev, "state") {
			case "connected":
				ConnectionState.Set(1)
			case "connecting":
				if dialled.Swap(true) {
					Reconnects.Inc()
				}
			default:
				ConnectionState.Set(0)
			}
		}
	})
	return func() { events.Off(bus.Wildcard, id) }
}

func payloadString(ev bus.Event, key string) string {
	s, _ := ev.Payload[key].(string)
	return s
}

// Serve exposes the collector at /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", Collector.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}
