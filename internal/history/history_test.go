package history

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"linkrelay/internal/bus"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// --- Migrations ---

func TestRunMigrations_FreshAndIdempotent(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if v, err := GetSchemaVersion(db); err != nil || v != 0 {
		t.Fatalf("fresh version = %d, %v", v, err)
	}
	for i := 0; i < 2; i++ {
		if err := RunMigrations(db, testLogger()); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	v, err := GetSchemaVersion(db)
	if err != nil {
		t.Fatal(err)
	}
	if v != schemaVersion {
		t.Errorf("version = %d, want %d", v, schemaVersion)
	}

	for _, table := range []string{"relays", "commands", "schema_version"} {
		var name string
		if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name); err != nil {
			t.Errorf("table %q missing: %v", table, err)
		}
	}
}

func TestSplitSQL(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"CREATE TABLE t (id INT)", 1},
		{"CREATE TABLE t1 (id INT); CREATE TABLE t2 (id INT);", 2},
		{"  ;  ;", 0},
	}
	for _, tt := range tests {
		if got := splitSQL(tt.input); len(got) != tt.want {
			t.Errorf("splitSQL(%q) = %d statements, want %d", tt.input, len(got), tt.want)
		}
	}
}

// --- Store ---

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, bvid := range []string{"BV17x411w7KC", "BV1xx411c7mD", "BV17x411w7KC"} {
		err := s.Record(ctx, Relay{
			BVID: bvid, Title: "t" + bvid, Kind: "group", TargetID: "555",
			SenderID: "10001", Provenance: "inline-text",
			Latency: 1500 * time.Millisecond, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len = %d, want 2", len(recent))
	}
	if recent[0].BVID != "BV17x411w7KC" || recent[1].BVID != "BV1xx411c7mD" {
		t.Errorf("order = %s, %s", recent[0].BVID, recent[1].BVID)
	}
	if recent[0].Latency != 1500*time.Millisecond || recent[0].TargetID != "555" || recent[0].Kind != "group" {
		t.Errorf("entry = %+v", recent[0])
	}
	if !recent[0].CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("created_at = %v", recent[0].CreatedAt)
	}

	n, err := s.CountByBVID(ctx, "BV17x411w7KC")
	if err != nil || n != 2 {
		t.Errorf("CountByBVID = %d, %v", n, err)
	}
	if n, _ := s.CountByBVID(ctx, "BV1none"); n != 0 {
		t.Errorf("CountByBVID(absent) = %d", n)
	}

	top, err := s.Top(ctx, 5)
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	if len(top) != 2 || top[0].BVID != "BV17x411w7KC" || top[0].Count != 2 {
		t.Errorf("top = %+v", top)
	}
}

func TestStore_RecentEmpty(t *testing.T) {
	s := openTestStore(t)
	recent, err := s.Recent(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 0 {
		t.Errorf("recent = %v", recent)
	}
}

func TestStore_Commands(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.LogCommand(ctx, CommandRecord{Command: "add_group", SenderID: "10001", Outcome: "ok"}); err != nil {
		t.Fatal(err)
	}
	if err := s.LogCommand(ctx, CommandRecord{Command: "disable", SenderID: "2", Outcome: "refused_owner"}); err != nil {
		t.Fatal(err)
	}
	cmds, err := s.RecentCommands(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 2 || cmds[0].Command != "disable" || cmds[0].Outcome != "refused_owner" {
		t.Errorf("commands = %+v", cmds)
	}
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), Relay{BVID: "BV17x411w7KC", Kind: "private", TargetID: "1"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := Open(path, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if n, _ := s2.CountByBVID(context.Background(), "BV17x411w7KC"); n != 1 {
		t.Errorf("count after reopen = %d", n)
	}
}

// --- Event wiring ---

func TestStore_AttachRecordsEvents(t *testing.T) {
	s := openTestStore(t)
	events := bus.NewEventBus(testLogger())
	detach := s.Attach(events)

	events.Emit(bus.Event{Type: bus.EventRelaySent, Payload: map[string]any{
		"bvid": "BV17x411w7KC", "title": "x", "kind": "group", "target": "555",
		"sender": "1", "provenance": "embedded-card", "latency": 20 * time.Millisecond,
	}})
	events.Emit(bus.Event{Type: bus.EventCommandHandled, Payload: map[string]any{
		"command": "status", "sender": "1", "outcome": "ok",
	}})

	recent, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Provenance != "embedded-card" || recent[0].Latency != 20*time.Millisecond {
		t.Errorf("recent = %+v", recent)
	}
	cmds, _ := s.RecentCommands(context.Background(), 10)
	if len(cmds) != 1 || cmds[0].Command != "status" {
		t.Errorf("commands = %+v", cmds)
	}

	detach()
	events.Emit(bus.Event{Type: bus.EventRelaySent, Payload: map[string]any{"bvid": "BV1xx411c7mD", "kind": "private", "target": "1"}})
	if n, _ := s.CountByBVID(context.Background(), "BV1xx411c7mD"); n != 0 {
		t.Error("detached store still recording")
	}
}
