// Package settingscmder provides the settings command for the local
// preference store (theme, chat defaults, the remembered session).
package settingscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/cmd/anygen/cmdenv"
	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/config"
	"github.com/rshanygen/anygen/pkg/prefs"
)

const settingsLongDesc string = `Manage local preferences.

Preferences are small JSON values kept in prefs.db in the .anygen/ directory,
shared with the proxy. Values given to "settings set" are parsed as JSON
and stored as plain strings otherwise.

Known keys:
  theme                light | dark
  sidebarCollapsed     true | false
  session_id           the current chat session
  chat.enable_search   default for chat --search
  chat.kb_ids          knowledge bases remembered by chat --kb
  model.provider, model.name, model.embedding

Examples:
  anygen settings set theme dark
  anygen settings set chat.kb_ids '["kb-1","kb-2"]'
  anygen settings ls`

const settingsShortDesc string = "Manage local preferences"

var themes = []string{"light", "dark"}

func NewSettingsCmd() *cobra.Command {
	var prefsPath string

	cmd := &cobra.Command{
		Use:     "settings",
		Aliases: []string{"prefs"},
		Short:   settingsShortDesc,
		Long:    settingsLongDesc,
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagPrefsPath, &prefsPath)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a preference as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(cmd, func(ctx context.Context, env *cmdenv.Env, store *prefs.Storage) error {
				raw, ok, err := store.Raw(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("preference %q is not set", args[0])
				}
				fmt.Fprintln(env.Out, raw)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], parseValue(args[1])
			if err := validate(key, value); err != nil {
				return err
			}

			return withPrefs(cmd, func(ctx context.Context, env *cmdenv.Env, store *prefs.Storage) error {
				if err := store.Set(ctx, key, value); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s %s\n", cliui.SuccessMark, key)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored preferences",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPrefs(cmd, runList)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <key>",
		Aliases: []string{"rm"},
		Short:   "Remove a preference",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPrefs(cmd, func(ctx context.Context, env *cmdenv.Env, store *prefs.Storage) error {
				if err := store.Remove(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Removed %s\n", cliui.SuccessMark, args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every preference, including the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPrefs(cmd, func(ctx context.Context, env *cmdenv.Env, store *prefs.Storage) error {
				if err := store.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Preferences cleared\n", cliui.SuccessMark)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Drop preferences that no longer decode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withPrefs(cmd, func(ctx context.Context, env *cmdenv.Env, store *prefs.Storage) error {
				n, err := store.Cleanup(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Removed %d invalid entries\n", cliui.SuccessMark, n)
				return nil
			})
		},
	})

	return cmd
}

func withPrefs(cmd *cobra.Command, fn func(ctx context.Context, env *cmdenv.Env, store *prefs.Storage) error) error {
	env, err := cmdenv.FromCommand(cmd, config.FlagPrefsPath)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	store, err := env.Prefs(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, env, store)
}

func runList(ctx context.Context, env *cmdenv.Env, store *prefs.Storage) error {
	keys, err := store.Keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(env.Out, cliui.DimStyle.Render("No preferences stored."))
		return nil
	}
	slices.Sort(keys)

	tw := tabwriter.NewWriter(env.Out, 0, 0, 2, ' ', 0)
	for _, key := range keys {
		raw, _, err := store.Raw(ctx, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\n", key, raw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	size, err := store.Size(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "\n%s\n", cliui.DimStyle.Render(fmt.Sprintf("%d entries, %d bytes", len(keys), size)))
	return nil
}

// parseValue decodes s as JSON, falling back to the literal string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

func validate(key string, value any) error {
	switch key {
	case prefs.KeyTheme:
		s, ok := value.(string)
		if !ok || !slices.Contains(themes, s) {
			return fmt.Errorf("invalid theme %v: must be one of %v", value, themes)
		}
	case prefs.KeySidebarCollapsed, prefs.KeyChatEnableSearch:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%s must be true or false", key)
		}
	case prefs.KeyModelName, prefs.KeyModelEmbedding:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%s must be a string", key)
		}
	case prefs.KeyChatKBIDs:
		list, ok := value.([]any)
		if !ok {
			return fmt.Errorf("%s must be a JSON array of ids", key)
		}
		for _, id := range list {
			if _, ok := id.(string); !ok {
				return fmt.Errorf("%s must be a JSON array of ids", key)
			}
		}
	}
	return nil
}
