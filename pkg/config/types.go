package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Config represents the persistent anygen configuration stored as config.toml
// in the .anygen/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version int           `toml:"version"`
	Gateway GatewayConfig `toml:"gateway"`
	RAG     RAGConfig     `toml:"rag"`
	Chat    ChatConfig    `toml:"chat"`
	Auth    AuthConfig    `toml:"auth"`
	Proxy   ProxyConfig   `toml:"proxy"`
	Storage StorageConfig `toml:"storage"`
}

// GatewayConfig points the CLI at the assistant gateway. URL is a full
// URL (scheme + host + port).
type GatewayConfig struct {
	URL string `toml:"url,omitempty"`
}

// RAGConfig points at the retrieval pipeline that serves document ingest.
type RAGConfig struct {
	URL string `toml:"url,omitempty"`
}

// ChatConfig holds per-message defaults for "anygen chat".
type ChatConfig struct {
	EnableSearch bool   `toml:"enable_search,omitempty"`
	Model        string `toml:"model,omitempty"`
}

// AuthConfig holds login settings.
type AuthConfig struct {
	// CallbackListen is the address the login callback server binds to.
	CallbackListen string `toml:"callback_listen,omitempty"`
}

// ProxyConfig holds dev proxy settings.
type ProxyConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// StorageConfig holds local preference storage settings.
type StorageConfig struct {
	// PrefsPath overrides the location of the preferences database.
	// Empty means prefs.db in the resolved .anygen/ directory.
	PrefsPath string `toml:"prefs_path,omitempty"`
}

// configKey maps a user-facing dotted key name to a getter and setter on *Config.
type configKey struct {
	name string
	get  func(c *Config) string
	set  func(c *Config, v string) error
}

// configKeys lists every supported key in TOML section order.
var configKeys = []configKey{
	{
		name: "gateway.url",
		get:  func(c *Config) string { return c.Gateway.URL },
		set:  func(c *Config, v string) error { return setURL(&c.Gateway.URL, "gateway.url", v) },
	},
	{
		name: "rag.url",
		get:  func(c *Config) string { return c.RAG.URL },
		set:  func(c *Config, v string) error { return setURL(&c.RAG.URL, "rag.url", v) },
	},
	{
		name: "chat.enable_search",
		get:  func(c *Config) string { return strconv.FormatBool(c.Chat.EnableSearch) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for chat.enable_search: %w", err)
			}
			c.Chat.EnableSearch = b
			return nil
		},
	},
	{
		name: "chat.model",
		get:  func(c *Config) string { return c.Chat.Model },
		set:  func(c *Config, v string) error { c.Chat.Model = v; return nil },
	},
	{
		name: "auth.callback_listen",
		get:  func(c *Config) string { return c.Auth.CallbackListen },
		set:  func(c *Config, v string) error { c.Auth.CallbackListen = v; return nil },
	},
	{
		name: "proxy.listen",
		get:  func(c *Config) string { return c.Proxy.Listen },
		set:  func(c *Config, v string) error { c.Proxy.Listen = v; return nil },
	},
	{
		name: "storage.prefs_path",
		get:  func(c *Config) string { return c.Storage.PrefsPath },
		set:  func(c *Config, v string) error { c.Storage.PrefsPath = v; return nil },
	},
}

func lookupKey(name string) (configKey, bool) {
	for _, k := range configKeys {
		if k.name == name {
			return k, true
		}
	}
	return configKey{}, false
}

// setURL stores v in dst when it is an absolute http(s) URL. Trailing
// slashes are dropped so paths can be appended.
func setURL(dst *string, key, v string) error {
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid value for %s: %q is not an http(s) URL", key, v)
	}
	*dst = strings.TrimRight(v, "/")
	return nil
}
