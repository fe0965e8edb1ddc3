// Package admincmder provides the admin command for managing identity
// provider users and roles. Every subcommand requires the admin role.
package admincmder

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

const adminLongDesc string = `Administer users and roles.

All subcommands require the admin role.

Examples:
  anygen admin users ls --search alice
  anygen admin users create alice --email alice@example.com --password-stdin
  anygen admin users set-roles <id> --add editor --remove viewer
  anygen admin roles`

const adminShortDesc string = "Administer users and roles"

func NewAdminCmd() *cobra.Command {
	var gatewayURL, ragURL string

	cmd := &cobra.Command{
		Use:   "admin",
		Short: adminShortDesc,
		Long:  adminLongDesc,
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagGateway, &gatewayURL)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagRAG, &ragURL)

	cmd.AddCommand(newUsersCmd())
	cmd.AddCommand(newRolesCmd())

	return cmd
}

func newRolesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roles",
		Short: "List realm roles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				roles, err := gw.ListRoles(ctx)
				if err != nil {
					return err
				}
				return printRoles(env.Out, roles)
			})
		},
	}
}

func printRoles(w io.Writer, roles []gateway.Role) error {
	if len(roles) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No roles."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDESCRIPTION")
	for _, r := range roles {
		fmt.Fprintf(tw, "%s\t%s\n", r.Name, utils.Truncate(r.Description, 60))
	}
	return tw.Flush()
}
