// Package history keeps a SQLite log of relayed summaries and operator
// commands.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Relay is one summary sent to a chat.
type Relay struct {
	ID         int64
	BVID       string
	Title      string
	Kind       string // "group" or "private"
	TargetID   string
	SenderID   string
	Provenance string
	Latency    time.Duration
	CreatedAt  time.Time
}

// CommandRecord is one handled operator command.
type CommandRecord struct {
	ID        int64
	Command   string
	SenderID  string
	Outcome   string
	CreatedAt time.Time
}

// BVIDCount pairs a video with how often it was relayed.
type BVIDCount struct {
	BVID  string
	Title string
	Count int
}

// Store is the SQLite-backed history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at dbPath.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Record appends a relay entry.
func (s *Store) Record(ctx context.Context, r Relay) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relays (bvid, title, kind, target_id, sender_id, provenance, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BVID, r.Title, r.Kind, r.TargetID, r.SenderID, r.Provenance, r.Latency.Milliseconds(), r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert relay: %w", err)
	}
	return nil
}

// Recent returns the newest relays first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Relay, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, bvid, title, kind, target_id, sender_id, provenance, latency_ms, created_at
		 FROM relays ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Relay
	for rows.Next() {
		var r Relay
		var latencyMs int64
		if err := rows.Scan(&r.ID, &r.BVID, &r.Title, &r.Kind, &r.TargetID, &r.SenderID,
			&r.Provenance, &latencyMs, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Latency = time.Duration(latencyMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByBVID returns how many times bvid was relayed.
func (s *Store) CountByBVID(ctx context.Context, bvid string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM relays WHERE bvid = ?`, bvid).Scan(&n)
	return n, err
}

// Top returns the most relayed videos.
func (s *Store) Top(ctx context.Context, limit int) ([]BVIDCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT bvid, MAX(title), COUNT(*) AS n FROM relays
		 GROUP BY bvid ORDER BY n DESC, bvid LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BVIDCount
	for rows.Next() {
		var c BVIDCount
		if err := rows.Scan(&c.BVID, &c.Title, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LogCommand appends a command audit entry.
func (s *Store) LogCommand(ctx context.Context, c CommandRecord) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO commands (command, sender_id, outcome, created_at) VALUES (?, ?, ?, ?)`,
		c.Command, c.SenderID, c.Outcome, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}
	return nil
}

// RecentCommands returns the newest command entries first.
func (s *Store) RecentCommands(ctx context.Context, limit int) ([]CommandRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, command, sender_id, outcome, created_at
		 FROM commands ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var c CommandRecord
		if err := rows.Scan(&c.ID, &c.Command, &c.SenderID, &c.Outcome, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
