package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"linkrelay/internal/command"
	"linkrelay/internal/config"

	"github.com/gorilla/websocket"
)

func TestResolveConfigPath(t *testing.T) {
	old := configPath
	t.Cleanup(func() { configPath = old })

	configPath = "/tmp/linkrelay/config.yaml"
	if got := resolveConfigPath(); got != "/tmp/linkrelay/config.yaml" {
		t.Errorf("got %q", got)
	}
	configPath = ""
	if got := resolveConfigPath(); !strings.HasSuffix(got, filepath.Join(".linkrelay", "config.json")) {
		t.Errorf("default path = %q", got)
	}
}

func TestSystemdUnit(t *testing.T) {
	unit := systemdUnit("/usr/local/bin/linkrelay", "/etc/linkrelay.json", false)
	if !strings.Contains(unit, "ExecStart=/usr/local/bin/linkrelay run --config /etc/linkrelay.json\n") {
		t.Errorf("unit missing ExecStart:\n%s", unit)
	}
	if !strings.Contains(unit, "WantedBy=default.target") {
		t.Errorf("user unit should target default.target:\n%s", unit)
	}
	if sys := systemdUnit("/usr/local/bin/linkrelay", "/etc/linkrelay.json", true); !strings.Contains(sys, "WantedBy=multi-user.target") {
		t.Errorf("system unit should target multi-user.target:\n%s", sys)
	}
}

func TestSystemdUnit_QuotesPaths(t *testing.T) {
	unit := systemdUnit("/opt/link relay/linkrelay", `/home/me/my "cfg".json`, false)
	want := `ExecStart="/opt/link relay/linkrelay" run --config "/home/me/my \"cfg\".json"`
	if !strings.Contains(unit, want) {
		t.Errorf("unit missing %s:\n%s", want, unit)
	}
}

func TestWriteAndRemoveUnit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "systemd", "user")
	path, err := writeUnit(dir, "[Unit]\n")
	if err != nil {
		t.Fatalf("writeUnit: %v", err)
	}
	if filepath.Base(path) != unitName {
		t.Errorf("path = %s", path)
	}
	if _, err := removeUnit(dir); err != nil {
		t.Fatalf("removeUnit: %v", err)
	}
	if _, err := removeUnit(dir); err == nil || !strings.Contains(err.Error(), "no unit installed") {
		t.Errorf("second remove: %v", err)
	}
}

func TestUnitDir_XDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	if dir, _ := unitDir(false); dir != filepath.Join("/tmp/xdg", "systemd", "user") {
		t.Errorf("user dir = %s", dir)
	}
	if dir, _ := unitDir(true); dir != "/etc/systemd/system" {
		t.Errorf("system dir = %s", dir)
	}
}

func TestCheckDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	if err := checkDatabase(path); err != nil {
		t.Fatalf("checkDatabase: %v", err)
	}
}

func TestCheckPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	if err := checkPort(ln.Addr().String()); err == nil {
		t.Error("expected error for a port in use")
	}
}

func TestCheckUpstream(t *testing.T) {
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	if err := checkUpstream(context.Background(), wsURL, "secret"); err != nil {
		t.Errorf("checkUpstream: %v", err)
	}
	err := checkUpstream(context.Background(), wsURL, "wrong")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected 401 error, got %v", err)
	}
}

func TestCheckAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/view" || r.URL.Query().Get("bvid") == "" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"code":0}`))
	}))
	defer srv.Close()

	if err := checkAPI(context.Background(), srv.URL); err != nil {
		t.Errorf("checkAPI: %v", err)
	}
	if err := checkAPI(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}
}

func TestOwnerWarningMatchesAuthorization(t *testing.T) {
	cfg := config.Defaults()
	store := config.NewStore(filepath.Join(t.TempDir(), "config.json"), cfg, nil)
	proc := command.NewProcessor(command.ProcessorConfig{Store: store})

	cmd, _ := command.Parse("/bili add_group 555", config.DefaultCommandPrefix)
	if res := proc.Handle(cmd, "424242", false); res.Reply == command.ReplyNotOwner {
		t.Fatal("without an owner any private sender runs admin commands")
	}
	warning := ownerWarning(cfg)
	if !strings.Contains(warning, "open to every private-chat sender") {
		t.Errorf("warning = %q", warning)
	}

	cfg.Owner = "10001"
	if got := ownerWarning(cfg); got != "" {
		t.Errorf("warning with owner = %q", got)
	}
}
