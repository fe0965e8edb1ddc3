package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rshanygen/anygen/pkg/dotdir"
)

// EnvPrefix prefixes every environment override, e.g. ANYGEN_GATEWAY_URL
// for gateway.url.
const EnvPrefix = "ANYGEN"

// InitViper returns a viper instance layered as, highest first: flags bound
// with BindRegisteredFlags, ANYGEN_* environment variables, config.toml in
// the resolved .anygen/ directory, and NewDefaultConfig().
func InitViper(configDir string) (*viper.Viper, error) {
	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setViperDefaults(v)

	if target == "" {
		return v, nil
	}

	v.SetConfigType("toml")
	v.SetConfigName("config")
	v.AddConfigPath(target)

	var notFound viper.ConfigFileNotFoundError
	if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return v, nil
}

// setViperDefaults seeds v with every value from NewDefaultConfig().
func setViperDefaults(v *viper.Viper) {
	defaults := NewDefaultConfig()
	v.SetDefault("version", defaults.Version)
	for _, k := range configKeys {
		v.SetDefault(k.name, k.get(defaults))
	}
}
