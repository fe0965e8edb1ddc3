// Package configcmder provides the config command for managing persistent
// anygen configuration stored in the .anygen/ directory.
package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/pkg/config"
)

const configLongDesc string = `Manage persistent anygen configuration.

Configuration is stored as config.toml in the .anygen/ directory and provides
default values for command flags. CLI flags and ANYGEN_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  gateway.url, rag.url,
  chat.enable_search, chat.model,
  auth.callback_listen, proxy.listen, storage.prefs_path

Use subcommands to get, set, or list configuration values:
  anygen config set <key> <value>    Set a configuration value
  anygen config get <key>            Get a configuration value
  anygen config list                 List all configuration values
  anygen config preset <name>        Replace the config with a preset

Examples:
  anygen config set gateway.url https://anygen.example.com
  anygen config set chat.enable_search true
  anygen config get gateway.url
  anygen config preset proxy`

const configShortDesc string = "Manage persistent anygen configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newPresetCmd())

	return cmd
}

func unknownKeyError(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}
