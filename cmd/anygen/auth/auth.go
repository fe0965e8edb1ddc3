// Package authcmder provides the auth command: browser login, storing a
// token by hand, logout and whoami.
package authcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/cmd/anygen/cmdenv"
	"github.com/rshanygen/anygen/pkg/auth"
	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/config"
	"github.com/rshanygen/anygen/pkg/gateway"
)

const authLongDesc string = `Sign in to the AnyGen gateway.

"auth login" opens the identity provider's sign-in page and waits for the
redirect on a local callback server. When a browser cannot reach this
machine, copy a token from the web UI and store it with "auth token".

Credentials are kept in credentials.toml in the .anygen/ directory.

Examples:
  anygen auth login
  anygen auth token < token.txt
  anygen auth whoami`

const authShortDesc string = "Sign in and manage credentials"

func NewAuthCmd() *cobra.Command {
	var gatewayURL, ragURL string

	cmd := &cobra.Command{
		Use:   "auth",
		Short: authShortDesc,
		Long:  authLongDesc,
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagGateway, &gatewayURL)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagRAG, &ragURL)

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newTokenCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoAmICmd())

	return cmd
}

func newLoginCmd() *cobra.Command {
	var callbackListen string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in through the identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd, config.FlagGateway, config.FlagRAG, config.FlagCallbackListen)
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			gw, err := env.Gateway(ctx)
			if err != nil {
				return err
			}
			creds, err := env.Credentials()
			if err != nil {
				return err
			}

			err = auth.Login(ctx, gw, creds, auth.LoginOptions{
				Listen: env.Viper.GetString("auth.callback_listen"),
				OnAuthorizeURL: func(u string) {
					fmt.Fprintf(env.Out, "Open this URL in your browser to sign in:\n\n  %s\n\n", u)
					fmt.Fprintln(env.Out, cliui.DimStyle.Render("Waiting for the sign-in to complete..."))
				},
				Logger: env.Logger,
			})
			if err != nil {
				return err
			}

			return printSignedIn(ctx, env, gw)
		},
	}
	config.AddStringFlag(cmd, config.Flags, config.FlagCallbackListen, &callbackListen)
	return cmd
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token [token]",
		Short: "Store an access token obtained elsewhere",
		Long: `Store an access token obtained elsewhere.

Without an argument the token is read from stdin, without echo when stdin
is a terminal. A leading "Bearer " is stripped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				var err error
				token, err = cmdenv.ReadSecret(cmd, "Token: ")
				if err != nil {
					return err
				}
			}

			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			creds, err := env.Credentials()
			if err != nil {
				return err
			}
			if err := auth.SaveRawToken(creds, token); err != nil {
				return err
			}

			fmt.Fprintf(env.Out, "%s Token saved to %s\n", cliui.SuccessMark, creds.GetTarget())
			return nil
		},
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			creds, err := env.Credentials()
			if err != nil {
				return err
			}
			if err := auth.Logout(creds); err != nil {
				return err
			}

			fmt.Fprintf(env.Out, "%s Logged out\n", cliui.SuccessMark)
			return nil
		},
	}
}

func newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				info, err := auth.WhoAmI(ctx, gw)
				if err != nil {
					return err
				}

				cliui.KV(env.Out, "username", info.Username)
				cliui.KV(env.Out, "email", info.Email)
				cliui.KV(env.Out, "name", info.Name)
				cliui.KV(env.Out, "roles", strings.Join(info.Roles, ", "))
				cliui.KV(env.Out, "gateway", gw.BaseURL())
				return nil
			})
		},
	}
}

func printSignedIn(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
	info, err := auth.WhoAmI(ctx, gw)
	if err != nil {
		env.Logger.Debug("fetching user info after login", "error", err)
		fmt.Fprintf(env.Out, "%s Signed in\n", cliui.SuccessMark)
		return nil
	}

	fmt.Fprintf(env.Out, "%s Signed in as %s\n", cliui.SuccessMark, cliui.NameStyle.Render(info.Username))
	return nil
}
