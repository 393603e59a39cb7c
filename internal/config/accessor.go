package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"linkrelay/internal/domain"
)

// setting binds a dot-path key to a Config field. set parses and checks a
// command-line value before storing it.
type setting struct {
	get func(*Config) any
	set func(*Config, string) error
}

var settings = map[string]setting{
	"enabled":        boolSetting(func(c *Config) *bool { return &c.Enabled }),
	"privateEnabled": boolSetting(func(c *Config) *bool { return &c.PrivateEnabled }),
	"upstream.url":   stringSetting(func(c *Config) *string { return &c.Upstream.URL }, nonEmpty),
	"upstream.token": stringSetting(func(c *Config) *string { return &c.Upstream.Token }, nil),
	"signature":      stringSetting(func(c *Config) *string { return &c.Signature }, nil),
	"commandPrefix":  stringSetting(func(c *Config) *string { return &c.CommandPrefix }, nonEmpty),
	"owner": {
		get: func(c *Config) any { return string(c.Owner) },
		set: func(c *Config, v string) error {
			if v = strings.TrimSpace(v); v == "" {
				c.Owner = ""
				return nil
			}
			id, ok := domain.FormatID(v)
			if !ok {
				return fmt.Errorf("owner must be a numeric id, got %q", v)
			}
			c.Owner = FlexString(id)
			return nil
		},
	},
	"allowedGroups": {
		get: func(c *Config) any { return slices.Clone([]string(c.AllowedGroups)) },
		set: func(c *Config, v string) error {
			groups := FlexStringList{}
			for _, g := range splitList(v) {
				id, ok := domain.FormatID(g)
				if !ok {
					return fmt.Errorf("allowedGroups: %q is not a numeric id", g)
				}
				if !slices.Contains(groups, id) {
					groups = append(groups, id)
				}
			}
			c.AllowedGroups = groups
			return nil
		},
	},
	"log.level":        stringSetting(func(c *Config) *string { return &c.Log.Level }, oneOf("debug", "info", "warn", "error")),
	"log.format":       stringSetting(func(c *Config) *string { return &c.Log.Format }, oneOf("text", "json")),
	"log.file":         stringSetting(func(c *Config) *string { return &c.Log.File }, nil),
	"bilibili.apiBase": stringSetting(func(c *Config) *string { return &c.Bilibili.APIBase }, nonEmpty),
	"history.enabled":  boolSetting(func(c *Config) *bool { return &c.History.Enabled }),
	"history.dbPath":   stringSetting(func(c *Config) *string { return &c.History.DBPath }, nonEmpty),
	"metrics.enabled":  boolSetting(func(c *Config) *bool { return &c.Metrics.Enabled }),
	"metrics.addr":     stringSetting(func(c *Config) *string { return &c.Metrics.Addr }, nonEmpty),
}

func boolSetting(field func(*Config) *bool) setting {
	return setting{
		get: func(c *Config) any { return *field(c) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("expected true or false, got %q", v)
			}
			*field(c) = b
			return nil
		},
	}
}

func stringSetting(field func(*Config) *string, check func(string) error) setting {
	return setting{
		get: func(c *Config) any { return *field(c) },
		set: func(c *Config, v string) error {
			if check != nil {
				if err := check(v); err != nil {
					return err
				}
			}
			*field(c) = v
			return nil
		},
	}
}

func nonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("value must not be empty")
	}
	return nil
}

func oneOf(allowed ...string) func(string) error {
	return func(v string) error {
		if !slices.Contains(allowed, v) {
			return fmt.Errorf("must be one of: %s", strings.Join(allowed, ", "))
		}
		return nil
	}
}

// Keys returns every settable dot-path, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// GetByPath returns the value stored under a key such as "upstream.url".
func GetByPath(cfg *Config, key string) (any, error) {
	s, ok := settings[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key %q (see 'config list --flat')", key)
	}
	return s.get(cfg), nil
}

// SetByPath parses value for key and stores it in cfg. cfg is unchanged
// when the value is rejected.
func SetByPath(cfg *Config, key, value string) error {
	s, ok := settings[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (see 'config list --flat')", key)
	}
	if err := s.set(cfg, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// ListPaths returns every key with its current value.
func ListPaths(cfg *Config) map[string]any {
	out := make(map[string]any, len(settings))
	for k, s := range settings {
		out[k] = s.get(cfg)
	}
	return out
}

// Sanitize returns a copy of cfg safe to print: the upstream token keeps
// only its last four characters.
func Sanitize(cfg *Config) *Config {
	c := *cfg
	c.AllowedGroups = slices.Clone(cfg.AllowedGroups)
	if t := c.Upstream.Token; t != "" {
		if len(t) <= 8 {
			c.Upstream.Token = "***"
		} else {
			c.Upstream.Token = "***" + t[len(t)-4:]
		}
	}
	return &c
}
