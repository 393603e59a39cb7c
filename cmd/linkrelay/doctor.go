package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"linkrelay/internal/config"
	"linkrelay/internal/resolve"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

const doctorTimeout = 5 * time.Second

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your linkrelay setup",
		Long: `Verifies that the configuration loads, the OneBot websocket accepts a
connection, the bilibili API is reachable and the optional history database
and metrics port are usable. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("linkrelay doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'linkrelay init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config validation", err.Error())
				fmt.Printf("\n%d passed, 1 failed\n", passed)
				return fmt.Errorf("config invalid")
			}
			printPass("Config validation", "valid")
			passed++

			// 3. Owner and allow-list
			if warning := ownerWarning(cfg); warning != "" {
				printWarn("Owner", warning)
				warned++
			} else {
				printPass("Owner", string(cfg.Owner))
				passed++
			}
			if len(cfg.AllowedGroups) == 0 {
				printWarn("Allowed groups", "empty; no group messages will be relayed")
				warned++
			} else {
				printPass("Allowed groups", fmt.Sprintf("%d group(s)", len(cfg.AllowedGroups)))
				passed++
			}

			// 4. Upstream websocket
			if err := checkUpstream(cmd.Context(), cfg.Upstream.URL, cfg.Upstream.Token); err != nil {
				printFail("OneBot upstream", err.Error())
				failed++
			} else {
				printPass("OneBot upstream", cfg.Upstream.URL)
				passed++
			}

			// 5. Metadata API
			if err := checkAPI(cmd.Context(), cfg.Bilibili.APIBase); err != nil {
				printWarn("Bilibili API", err.Error())
				warned++
			} else {
				printPass("Bilibili API", cfg.Bilibili.APIBase)
				passed++
			}

			// 6. History database
			if cfg.History.Enabled {
				if err := checkDatabase(cfg.History.DBPath); err != nil {
					printFail("History database", err.Error())
					failed++
				} else {
					printPass("History database", cfg.History.DBPath)
					passed++
				}
			}

			// 7. Metrics port
			if cfg.Metrics.Enabled {
				if err := checkPort(cfg.Metrics.Addr); err != nil {
					printWarn("Metrics address", fmt.Sprintf("%s may be in use: %v", cfg.Metrics.Addr, err))
					warned++
				} else {
					printPass("Metrics address", cfg.Metrics.Addr+" available")
					passed++
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running linkrelay.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nlinkrelay should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! linkrelay is ready to run.\n")
			}
			return nil
		},
	}
}

// checkUpstream opens and immediately closes a websocket to the OneBot endpoint.
func checkUpstream(ctx context.Context, rawURL, token string) error {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: doctorTimeout}
	conn, resp, err := dialer.DialContext(ctx, rawURL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("handshake status %d", resp.StatusCode)
		}
		return err
	}
	return conn.Close()
}

// checkAPI requests a well-known video from the metadata endpoint.
func checkAPI(ctx context.Context, apiBase string) error {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"/view?bvid="+url.QueryEscape("BV1xx411c7mD"), nil)
	if err != nil {
		return err
	}
	resolve.SetBrowserHeaders(req)
	resp, err := resolve.SharedHTTPClient(doctorTimeout).Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), doctorTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
