package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"linkrelay/internal/domain"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for linkrelay.
type Config struct {
	Enabled        bool           `json:"enabled" yaml:"enabled"`
	PrivateEnabled bool           `json:"privateEnabled" yaml:"privateEnabled"`
	Upstream       UpstreamConfig `json:"upstream" yaml:"upstream"`
	Signature      string         `json:"signature" yaml:"signature"`
	AllowedGroups  FlexStringList `json:"allowedGroups" yaml:"allowedGroups"`
	Owner          FlexString     `json:"owner" yaml:"owner"`
	CommandPrefix  string         `json:"commandPrefix" yaml:"commandPrefix"`

	Log      LogConfig      `json:"log" yaml:"log"`
	Bilibili BilibiliConfig `json:"bilibili" yaml:"bilibili"`
	History  HistoryConfig  `json:"history" yaml:"history"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// UpstreamConfig points at the OneBot websocket endpoint.
type UpstreamConfig struct {
	URL   string `json:"url" yaml:"url"`
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug | info | warn | error
	Format string `json:"format" yaml:"format"` // text | json
	File   string `json:"file,omitempty" yaml:"file,omitempty"`
}

// BilibiliConfig overrides the metadata API location, mainly for mirrors and tests.
type BilibiliConfig struct {
	APIBase string `json:"apiBase" yaml:"apiBase"`
}

// HistoryConfig controls the SQLite log of relayed summaries.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DBPath  string `json:"dbPath" yaml:"dbPath"`
}

// MetricsConfig configures the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// FlexString is a string that also unmarshals from a JSON or YAML number,
// so `"owner": 10001` and `"owner": "10001"` load the same way.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	id, ok := domain.FormatID(n)
	if !ok {
		return fmt.Errorf("invalid numeric id %s", n)
	}
	*f = FlexString(id)
	return nil
}

func (f *FlexString) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected scalar", node.Line)
	}
	*f = FlexString(strings.TrimSpace(node.Value))
	return nil
}

// FlexStringList is a []string that can unmarshal from arrays containing
// both strings and numbers (e.g. ["123", 456] both become "123", "456").
// A single comma-separated string is accepted too.
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = splitList(single)
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

func (f *FlexStringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*f = splitList(node.Value)
		return nil
	case yaml.SequenceNode:
		result := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected scalar list item", item.Line)
			}
			result = append(result, strings.TrimSpace(item.Value))
		}
		*f = result
		return nil
	default:
		return fmt.Errorf("line %d: expected list", node.Line)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DefaultConfigDir returns the default config directory (~/.linkrelay).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".linkrelay"
	}
	return filepath.Join(home, ".linkrelay")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// LoadOrInit loads the config at path. When the file does not exist the
// defaults are written there and returned; created reports that case.
func LoadOrInit(path string) (cfg *Config, created bool, err error) {
	path = ExpandPath(path)
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg = Defaults()
		if err := Save(path, cfg); err != nil {
			return nil, false, fmt.Errorf("write default config: %w", err)
		}
		cfg.History.DBPath = ExpandPath(cfg.History.DBPath)
		return cfg, true, nil
	}
	cfg, err = Load(path)
	return cfg, false, err
}

// Load reads the config at path and overlays it on Defaults(), so keys the
// file omits keep their default values.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.History.DBPath = ExpandPath(cfg.History.DBPath)
	cfg.Log.File = ExpandPath(cfg.Log.File)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(groups[1])
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

// Save writes cfg to path, replacing the previous file atomically.
func Save(path string, cfg *Config) error {
	path = ExpandPath(path)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("cannot create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("cannot write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot write config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("cannot replace config: %w", err)
	}
	return nil
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if strings.TrimSpace(cfg.CommandPrefix) == "" {
		errs = append(errs, "commandPrefix must not be empty")
	}
	if u, err := url.Parse(cfg.Upstream.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		errs = append(errs, "upstream.url must be a ws:// or wss:// URL")
	}
	if cfg.Owner != "" {
		if _, ok := domain.FormatID(string(cfg.Owner)); !ok {
			errs = append(errs, fmt.Sprintf("owner must be a numeric id, got %q", cfg.Owner))
		}
	}
	for _, g := range cfg.AllowedGroups {
		if _, ok := domain.FormatID(g); !ok {
			errs = append(errs, fmt.Sprintf("allowedGroups contains non-numeric id %q", g))
		}
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of: debug, info, warn, error")
	}
	switch cfg.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, "log.format must be one of: text, json")
	}

	if u, err := url.Parse(cfg.Bilibili.APIBase); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "bilibili.apiBase must be an absolute URL")
	}
	if cfg.History.Enabled && cfg.History.DBPath == "" {
		errs = append(errs, "history.dbPath is required when history is enabled")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, "metrics.addr is required when metrics are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
