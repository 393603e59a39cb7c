package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"linkrelay/internal/config"
	"linkrelay/internal/history"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "linkrelay",
		Short: "linkrelay: bilibili link summaries for OneBot chats",
		Long: `linkrelay connects to a OneBot v11 websocket, watches chats for bilibili
links and mini-app cards, and replies with a summary of the video.
Running it without a subcommand starts the relay.`,
		Version:      version,
		SilenceUsage: true,
		RunE:         runGateway,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json or config.yaml (default: ~/.linkrelay/config.json)")

	root.AddCommand(runCmd())
	root.AddCommand(initCmd())
	root.AddCommand(configCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(daemonCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return config.ExpandPath(configPath)
	}
	return config.DefaultConfigPath()
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to OneBot and start relaying",
		Long:  "Loads (or creates) the config, connects to the OneBot websocket and relays until interrupted.",
		RunE:  runGateway,
	}
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. upstream.url)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. owner 10001)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	var flat bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = config.Sanitize(cfg)
			if !flat {
				data, _ := json.MarshalIndent(cfg, "", "  ")
				fmt.Println(string(data))
				return nil
			}
			paths := config.ListPaths(cfg)
			for _, k := range config.Keys() {
				v, _ := json.Marshal(paths[k])
				fmt.Printf("%s = %s\n", k, v)
			}
			return nil
		},
	}
	list.Flags().BoolVar(&flat, "flat", false, "print one dot-path per line, as accepted by 'config set'")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}

func historyCmd() *cobra.Command {
	var (
		limit    int
		top      bool
		commands bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently relayed videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if _, err := os.Stat(cfg.History.DBPath); err != nil {
				return fmt.Errorf("no history database at %s (enable history.enabled and run the relay)", cfg.History.DBPath)
			}
			store, err := history.Open(cfg.History.DBPath, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			defer tw.Flush()

			switch {
			case top:
				rows, err := store.Top(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "COUNT\tBVID\tTITLE")
				for _, r := range rows {
					fmt.Fprintf(tw, "%d\t%s\t%s\n", r.Count, r.BVID, r.Title)
				}
			case commands:
				rows, err := store.RecentCommands(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "TIME\tCOMMAND\tSENDER\tOUTCOME")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.CreatedAt.Local().Format(time.DateTime), r.Command, r.SenderID, r.Outcome)
				}
			default:
				rows, err := store.Recent(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(tw, "TIME\tBVID\tTARGET\tVIA\tLATENCY\tTITLE")
				for _, r := range rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						r.CreatedAt.Local().Format(time.DateTime), r.BVID, r.Kind+":"+r.TargetID,
						r.Provenance, r.Latency.Round(time.Millisecond), r.Title)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of rows")
	cmd.Flags().BoolVar(&top, "top", false, "show the most relayed videos")
	cmd.Flags().BoolVar(&commands, "commands", false, "show the operator command log")
	return cmd
}
