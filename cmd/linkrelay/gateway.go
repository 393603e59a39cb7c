package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"linkrelay/internal/bilibili"
	"linkrelay/internal/bus"
	"linkrelay/internal/command"
	"linkrelay/internal/config"
	"linkrelay/internal/history"
	"linkrelay/internal/metrics"
	"linkrelay/internal/onebot"
	"linkrelay/internal/relay"
	"linkrelay/internal/resolve"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// ownerWarning describes the admin-command exposure when no owner is set.
// Without an owner the processor authorizes every private sender.
func ownerWarning(cfg *config.Config) string {
	if cfg.Owner != "" {
		return ""
	}
	return "owner not set, admin commands are open to every private-chat sender"
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, created, err := config.LoadOrInit(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	logger = log

	if created {
		logger.Info("default config written", "path", cfgPath)
	}
	if warning := ownerWarning(cfg); warning != "" {
		logger.Warn(warning, "config", cfgPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := bus.NewEventBus(logger)
	detachMetrics := metrics.Attach(events)
	defer detachMetrics()

	var wg sync.WaitGroup
	if cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics server error", "err", err)
			}
		}()
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.DBPath, logger)
		if err != nil {
			return fmt.Errorf("history store: %w", err)
		}
		defer store.Close()
		detachHistory := store.Attach(events)
		defer detachHistory()
	}

	// Message bus (closed during graceful shutdown below)
	messageBus := bus.New(100, logger)
	cfgStore := config.NewStore(cfgPath, cfg, logger)

	client := onebot.NewClient(onebot.ClientConfig{
		URL:    cfg.Upstream.URL,
		Token:  cfg.Upstream.Token,
		Bus:    messageBus,
		Events: events,
		Logger: logger,
	})
	messageBus.OnOutbound(client.Send)

	router := relay.NewRouter(relay.RouterConfig{
		Bus:   messageBus,
		Store: cfgStore,
		Commands: command.NewProcessor(command.ProcessorConfig{
			Store:     cfgStore,
			Events:    events,
			Logger:    logger,
			ConnState: func() string { return client.State().String() },
		}),
		Resolver: resolve.NewResolver(resolve.ResolverConfig{Logger: logger}),
		Fetcher:  bilibili.NewClient(bilibili.ClientConfig{APIBase: cfg.Bilibili.APIBase, Logger: logger}),
		Events:   events,
		Logger:   logger,
	})

	wg.Add(2)
	go func() {
		defer wg.Done()
		client.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		router.Run(ctx)
	}()

	logger.Info("linkrelay started", "upstream", cfg.Upstream.URL, "groups", len(cfg.AllowedGroups), "enabled", cfg.Enabled)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
		messageBus.Close()
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out, forcing exit")
		return fmt.Errorf("shutdown timed out")
	}
}
