package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/rshanygen/anygen/pkg/dotdir"
)

const (
	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer reads and writes config.toml in a .anygen/ directory.
type Configer struct {
	targetPath string
}

// NewConfiger resolves the .anygen/ directory from override (see
// dotdir.Manager.Target) and returns a Configer for its config.toml. The file
// does not need to exist.
func NewConfiger(override string) (*Configer, error) {
	path, err := dotdir.NewManager().Path(override, dotdir.ConfigFile)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Configer{targetPath: path}, nil
}

// ValidConfigKeys returns every supported key in TOML section order.
func ValidConfigKeys() []string {
	keys := make([]string, len(configKeys))
	for i, k := range configKeys {
		keys[i] = k.name
	}
	return keys
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := lookupKey(key)
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml. A missing file yields NewDefaultConfig(), and
// fields the file leaves empty take their defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults fills the empty fields of cfg that have a default.
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	for _, f := range []struct {
		dst *string
		def string
	}{
		{&cfg.Gateway.URL, defaults.Gateway.URL},
		{&cfg.RAG.URL, defaults.RAG.URL},
		{&cfg.Auth.CallbackListen, defaults.Auth.CallbackListen},
		{&cfg.Proxy.Listen, defaults.Proxy.Listen},
	} {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}
}

// SaveConfig persists the configuration to config.toml in the target .anygen/ directory.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SetConfigValue sets key to value and saves the file.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := lookupKey(key)
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue returns the string form of key, its default when unset.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := lookupKey(key)
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a Config for the named deployment preset.
// "local" talks to the gateway and RAG services directly on their default
// ports; "proxy" routes both through a running "anygen serve" dev proxy.
func PresetConfig(name string) (*Config, error) {
	switch strings.ToLower(name) {
	case "local":
		return NewDefaultConfig(), nil

	case "proxy":
		cfg := NewDefaultConfig()
		cfg.Gateway.URL = "http://localhost" + defaultProxyListen
		cfg.RAG.URL = "http://localhost" + defaultProxyListen + "/rag"
		return cfg, nil

	default:
		return nil, fmt.Errorf("unknown preset: %q (available: local, proxy)", name)
	}
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return []string{"local", "proxy"}
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentConfigVersion.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
