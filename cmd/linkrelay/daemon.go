package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
)

const unitName = "linkrelay.service"

func daemonCmd() *cobra.Command {
	var system bool
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the linkrelay systemd service",
		Long: `Installs or removes a systemd unit that runs 'linkrelay run' with the
current --config. Without --system the unit goes to the user manager
(~/.config/systemd/user); with --system it goes to /etc/systemd/system.`,
	}
	cmd.PersistentFlags().BoolVar(&system, "system", false, "manage a system-wide unit instead of a user unit")

	var printOnly bool
	install := &cobra.Command{
		Use:   "install",
		Short: "Write the systemd unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			execPath, err := os.Executable()
			if err != nil {
				return fmt.Errorf("cannot determine executable path: %w", err)
			}
			unit := systemdUnit(execPath, resolveConfigPath(), system)
			if printOnly {
				fmt.Print(unit)
				return nil
			}
			if runtime.GOOS != "linux" {
				return fmt.Errorf("systemd units are only supported on linux (use --print to see the unit)")
			}
			dir, err := unitDir(system)
			if err != nil {
				return err
			}
			path, err := writeUnit(dir, unit)
			if err != nil {
				return err
			}
			fmt.Printf("Unit written: %s\n", path)
			fmt.Printf("Enable and start: systemctl %s daemon-reload && systemctl %s enable --now linkrelay\n", scopeFlag(system), scopeFlag(system))
			return nil
		},
	}
	install.Flags().BoolVar(&printOnly, "print", false, "print the unit instead of writing it")

	uninstall := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the systemd unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := unitDir(system)
			if err != nil {
				return err
			}
			path, err := removeUnit(dir)
			if err != nil {
				return err
			}
			fmt.Printf("Unit removed: %s\n", path)
			fmt.Printf("Stop it first if it is running: systemctl %s disable --now linkrelay\n", scopeFlag(system))
			return nil
		},
	}

	cmd.AddCommand(install, uninstall)
	return cmd
}

func scopeFlag(system bool) string {
	if system {
		return "--system"
	}
	return "--user"
}

func unitDir(system bool) (string, error) {
	if system {
		return "/etc/systemd/system", nil
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "systemd", "user"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "systemd", "user"), nil
}

// systemdUnit renders the service unit. The relay redials on its own, so
// systemd only restarts it after a crash or a fatal config error.
func systemdUnit(execPath, cfgPath string, system bool) string {
	var sb strings.Builder
	sb.WriteString("[Unit]\n")
	sb.WriteString("Description=linkrelay: bilibili summaries for OneBot chats\n")
	sb.WriteString("Wants=network-online.target\n")
	sb.WriteString("After=network-online.target\n\n")

	sb.WriteString("[Service]\n")
	sb.WriteString("Type=simple\n")
	fmt.Fprintf(&sb, "ExecStart=%s run --config %s\n", systemdQuote(execPath), systemdQuote(cfgPath))
	sb.WriteString("Restart=on-failure\n")
	sb.WriteString("RestartSec=10\n")
	sb.WriteString("KillSignal=SIGTERM\n")
	sb.WriteString("TimeoutStopSec=15\n\n")

	sb.WriteString("[Install]\n")
	if system {
		sb.WriteString("WantedBy=multi-user.target\n")
	} else {
		sb.WriteString("WantedBy=default.target\n")
	}
	return sb.String()
}

// systemdQuote double-quotes arguments containing spaces or quotes.
func systemdQuote(arg string) string {
	if !strings.ContainsAny(arg, " \t\"'\\") {
		return arg
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(arg) + `"`
}

func writeUnit(dir, unit string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create unit directory: %w", err)
	}
	path := filepath.Join(dir, unitName)
	if err := os.WriteFile(path, []byte(unit), 0o644); err != nil {
		return "", fmt.Errorf("write unit: %w", err)
	}
	return path, nil
}

func removeUnit(dir string) (string, error) {
	path := filepath.Join(dir, unitName)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("no unit installed at %s", path)
		}
		return "", fmt.Errorf("remove unit: %w", err)
	}
	return path, nil
}
