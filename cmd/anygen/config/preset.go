package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/config"
)

const presetLongDesc string = `Replace the configuration with a named preset.

Presets:
  local   gateway and RAG service addressed directly (ports 9301 and 9305)
  proxy   everything routed through the dev proxy on port 9300

Examples:
  anygen config preset local
  anygen config preset proxy`

func newPresetCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "preset <name>",
		Short:     "Replace the configuration with a named preset",
		Long:      presetLongDesc,
		Args:      cobra.ExactArgs(1),
		ValidArgs: config.ValidPresetNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runPreset(cmd.OutOrStdout(), args[0], configDir)
		},
	}
}

func runPreset(w io.Writer, name, configDir string) error {
	cfg, err := config.PresetConfig(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return err
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s Applied preset %s\n", cliui.SuccessMark, cliui.NameStyle.Render(name))
	cliui.KV(w, "gateway.url", cfg.Gateway.URL)
	cliui.KV(w, "rag.url", cfg.RAG.URL)
	return nil
}
