package config

// DefaultCommandPrefix is the token that marks a private message as a command.
const DefaultCommandPrefix = "/bili"

func Defaults() *Config {
	return &Config{
		Enabled:        true,
		PrivateEnabled: true,
		Upstream: UpstreamConfig{
			URL: "ws://127.0.0.1:3001",
		},
		Signature:     "",
		AllowedGroups: FlexStringList{},
		CommandPrefix: DefaultCommandPrefix,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Bilibili: BilibiliConfig{
			APIBase: "https://api.bilibili.com/x/web-interface",
		},
		History: HistoryConfig{
			Enabled: false,
			DBPath:  "~/.linkrelay/history.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}
