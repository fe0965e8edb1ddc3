package admincmder

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/cmd/anygen/cmdenv"
	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/gateway"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage users",
	}

	cmd.AddCommand(newUsersListCmd())
	cmd.AddCommand(newUsersShowCmd())
	cmd.AddCommand(newUsersCreateCmd())
	cmd.AddCommand(newUsersUpdateCmd())
	cmd.AddCommand(newUsersResetPasswordCmd())
	cmd.AddCommand(newUsersSetRolesCmd())

	return cmd
}

func newUsersListCmd() *cobra.Command {
	var opts gateway.ListUsersOptions

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List users",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				users, err := gw.ListUsers(ctx, opts)
				if err != nil {
					return err
				}
				return printUsers(env.Out, users)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Search, "search", "", "Filter by username, email or name")
	cmd.Flags().IntVar(&opts.First, "first", 0, "Offset of the first user")
	cmd.Flags().IntVar(&opts.Max, "max", gateway.DefaultListLimit, "Maximum number of users")
	return cmd
}

func newUsersShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				u, err := gw.GetUser(ctx, args[0])
				if err != nil {
					return err
				}

				cliui.KV(env.Out, "id", u.ID)
				cliui.KV(env.Out, "username", u.Username)
				cliui.KV(env.Out, "email", u.Email)
				cliui.KV(env.Out, "name", fullName(u))
				cliui.KV(env.Out, "enabled", u.Enabled)
				cliui.KV(env.Out, "email verified", u.EmailVerified)
				if u.CreatedTimestamp > 0 {
					cliui.KV(env.Out, "created", time.UnixMilli(u.CreatedTimestamp).Local().Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
}

type userFlags struct {
	email     string
	firstName string
	lastName  string
}

func (f *userFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Email address")
	cmd.Flags().StringVar(&f.firstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "Last name")
}

// changed returns pointers for the flags set on the command line only.
func (f *userFlags) changed(cmd *cobra.Command) (email, firstName, lastName *string) {
	if cmd.Flags().Changed("email") {
		email = &f.email
	}
	if cmd.Flags().Changed("first-name") {
		firstName = &f.firstName
	}
	if cmd.Flags().Changed("last-name") {
		lastName = &f.lastName
	}
	return email, firstName, lastName
}

func newUsersCreateCmd() *cobra.Command {
	var (
		fields        userFlags
		disabled      bool
		passwordStdin bool
		temporary     bool
	)

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := gateway.CreateUserRequest{
				Username:          args[0],
				Enabled:           !disabled,
				TemporaryPassword: temporary,
			}
			req.Email, req.FirstName, req.LastName = fields.changed(cmd)

			if passwordStdin {
				password, err := cmdenv.ReadSecret(cmd, "Password: ")
				if err != nil {
					return err
				}
				req.Password = &password
			}

			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				id, err := gw.CreateUser(ctx, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Created user %s %s\n",
					cliui.SuccessMark, cliui.NameStyle.Render(req.Username), cliui.DimStyle.Render(id))
				return nil
			})
		},
	}
	fields.register(cmd)
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the user disabled")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read an initial password from stdin")
	cmd.Flags().BoolVar(&temporary, "temporary", false, "Require a password change at first login")
	return cmd
}

func newUsersUpdateCmd() *cobra.Command {
	var (
		fields  userFlags
		enabled bool
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a user's profile or enabled state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req gateway.UpdateUserRequest
			req.Email, req.FirstName, req.LastName = fields.changed(cmd)
			if cmd.Flags().Changed("enabled") {
				req.Enabled = &enabled
			}
			if req.Email == nil && req.FirstName == nil && req.LastName == nil && req.Enabled == nil {
				return fmt.Errorf("nothing to update: pass --email, --first-name, --last-name or --enabled")
			}

			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				if err := gw.UpdateUser(ctx, args[0], req); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Updated user %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
				return nil
			})
		},
	}
	fields.register(cmd)
	cmd.Flags().BoolVar(&enabled, "enabled", true, "Enable or disable the user (--enabled=false)")
	return cmd
}

func newUsersResetPasswordCmd() *cobra.Command {
	var temporary bool

	cmd := &cobra.Command{
		Use:   "reset-password <id>",
		Short: "Set a new password, read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := cmdenv.ReadSecret(cmd, "New password: ")
			if err != nil {
				return err
			}
			req := gateway.ResetPasswordRequest{Password: password, Temporary: temporary}

			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				if err := gw.ResetUserPassword(ctx, args[0], req); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Password reset for %s\n", cliui.SuccessMark, cliui.NameStyle.Render(args[0]))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&temporary, "temporary", false, "Require a password change at next login")
	return cmd
}

func newUsersSetRolesCmd() *cobra.Command {
	var req gateway.UpdateRolesRequest

	cmd := &cobra.Command{
		Use:   "set-roles <id>",
		Short: "Grant or revoke realm roles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunAdmin(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				if err := gw.UpdateUserRoles(ctx, args[0], req); err != nil {
					return err
				}
				for _, r := range req.Add {
					fmt.Fprintf(env.Out, "%s granted %s\n", cliui.SuccessMark, cliui.NameStyle.Render(r))
				}
				for _, r := range req.Remove {
					fmt.Fprintf(env.Out, "%s revoked %s\n", cliui.SuccessMark, cliui.NameStyle.Render(r))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&req.Add, "add", nil, "Roles to grant")
	cmd.Flags().StringSliceVar(&req.Remove, "remove", nil, "Roles to revoke")
	return cmd
}

func printUsers(w io.Writer, users []gateway.User) error {
	if len(users) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No users."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tNAME\tENABLED")
	for _, u := range users {
		enabled := "yes"
		if !u.Enabled {
			enabled = "no"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, fullName(&u), enabled)
	}
	return tw.Flush()
}

func fullName(u *gateway.User) string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.LastName
	}
}
