// Package versioncmder prints the build information stamped into the binary.
package versioncmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/utils"
)

type VersionCommander struct {
	short bool
}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the anygen version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.short, "short", false, "Print only the version number")

	return cmd
}

func (c *VersionCommander) run(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	if c.short {
		fmt.Fprintln(out, utils.Version)
		return nil
	}

	fmt.Fprintf(out, "anygen %s\n", cliui.NameStyle.Render(utils.Version))
	cliui.KV(out, "commit", utils.Sha)
	cliui.KV(out, "built", utils.Buildtime)
	return nil
}
