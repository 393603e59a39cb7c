package config

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"linkrelay/internal/domain"
)

// Store owns the live configuration. Every mutation is written to disk
// before the call returns. A failed write is logged and returned, but the
// in-memory value keeps the new state.
type Store struct {
	mu     sync.RWMutex
	cfg    *Config
	path   string
	logger *slog.Logger
}

// NewStore wraps cfg, persisting mutations to path.
func NewStore(path string, cfg *Config, logger *slog.Logger) *Store {
	if cfg == nil {
		cfg = Defaults()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{cfg: cfg, path: path, logger: logger}
}

// Path returns the file the store persists to.
func (s *Store) Path() string { return s.path }

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := *s.cfg
	c.AllowedGroups = slices.Clone(s.cfg.AllowedGroups)
	return c
}

// CommandPrefix returns the configured command prefix.
func (s *Store) CommandPrefix() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.CommandPrefix
}

// Owner returns the canonical owner id, or "" when no owner is configured.
func (s *Store) Owner() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.Owner == "" {
		return ""
	}
	if id, ok := domain.FormatID(string(s.cfg.Owner)); ok {
		return id
	}
	return string(s.cfg.Owner)
}

// IsGroupAllowed reports whether the group id is on the allow-list.
func (s *Store) IsGroupAllowed(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOfGroup(id) >= 0
}

// SetEnabled toggles the global relay switch.
func (s *Store) SetEnabled(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Enabled = v
	return s.persist("enabled", v)
}

// SetPrivateEnabled toggles relaying in private chats.
func (s *Store) SetPrivateEnabled(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.PrivateEnabled = v
	return s.persist("privateEnabled", v)
}

// AddGroup inserts id into the allow-list. When id is already present
// nothing is written and added is false.
func (s *Store) AddGroup(id string) (added bool, err error) {
	canon, ok := domain.FormatID(id)
	if !ok {
		return false, fmt.Errorf("invalid group id %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOfGroup(canon) >= 0 {
		return false, nil
	}
	s.cfg.AllowedGroups = append(s.cfg.AllowedGroups, canon)
	return true, s.persist("allowedGroups", canon)
}

// RemoveGroup deletes id from the allow-list. When id is absent nothing is
// written and removed is false.
func (s *Store) RemoveGroup(id string) (removed bool, err error) {
	canon, ok := domain.FormatID(id)
	if !ok {
		return false, fmt.Errorf("invalid group id %q", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOfGroup(canon)
	if i < 0 {
		return false, nil
	}
	s.cfg.AllowedGroups = slices.Delete(s.cfg.AllowedGroups, i, i+1)
	return true, s.persist("allowedGroups", canon)
}

// indexOfGroup compares canonical forms so "0555", 555 and "555" match.
// Caller holds s.mu.
func (s *Store) indexOfGroup(id string) int {
	want, ok := domain.FormatID(id)
	if !ok {
		return -1
	}
	for i, g := range s.cfg.AllowedGroups {
		if have, ok := domain.FormatID(g); ok && have == want {
			return i
		}
	}
	return -1
}

// persist writes the config. Caller holds s.mu.
func (s *Store) persist(field string, value any) error {
	if err := Save(s.path, s.cfg); err != nil {
		s.logger.Error("config persist failed", "path", s.path, "field", field, "err", err)
		return fmt.Errorf("persist config: %w", err)
	}
	s.logger.Info("config updated", "path", s.path, "field", field, "value", value)
	return nil
}
