// Package skillscmder provides the skills command for inspecting and toggling
// the assistant's skills.
package skillscmder

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/cmd/anygen/cmdenv"
	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/config"
	"github.com/rshanygen/anygen/pkg/gateway"
	"github.com/rshanygen/anygen/pkg/utils"
)

const skillsLongDesc string = `Inspect and toggle the skills the assistant may use.

Examples:
  anygen skills ls
  anygen skills show web_search
  anygen skills disable web_search`

const skillsShortDesc string = "Manage assistant skills"

func NewSkillsCmd() *cobra.Command {
	var gatewayURL, ragURL string

	cmd := &cobra.Command{
		Use:     "skills",
		Aliases: []string{"skill"},
		Short:   skillsShortDesc,
		Long:    skillsLongDesc,
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagGateway, &gatewayURL)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagRAG, &ragURL)

	cmd.AddCommand(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List skills",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				skills, err := gw.ListSkills(ctx)
				if err != nil {
					return err
				}
				return printSkills(env.Out, skills)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a skill",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				s, err := gw.GetSkill(ctx, args[0])
				if err != nil {
					return err
				}

				cliui.KV(env.Out, "id", s.ID)
				cliui.KV(env.Out, "name", s.Name)
				cliui.KV(env.Out, "category", s.Category)
				cliui.KV(env.Out, "enabled", s.Enabled)
				cliui.KV(env.Out, "requires consent", s.RequiresConsent)
				cliui.KV(env.Out, "description", s.Description)
				return nil
			})
		},
	})

	cmd.AddCommand(newToggleCmd("enable", "Enable a skill", true))
	cmd.AddCommand(newToggleCmd("disable", "Disable a skill", false))

	return cmd
}

func newToggleCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				s, err := gw.ToggleSkill(ctx, args[0], enabled)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s %s %sd\n", cliui.SuccessMark, cliui.NameStyle.Render(s.ID), use)
				return nil
			})
		},
	}
}

func printSkills(w io.Writer, skills []gateway.Skill) error {
	if len(skills) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No skills available."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tCONSENT\tDESCRIPTION")
	for _, s := range skills {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, yesNo(s.Enabled), yesNo(s.RequiresConsent), utils.Truncate(s.Description, 50))
	}
	return tw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
