// Package sessionscmder provides the sessions command for listing, creating
// and switching chat sessions.
package sessionscmder

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/cmd/anygen/cmdenv"
	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/config"
	"github.com/rshanygen/anygen/pkg/gateway"
	"github.com/rshanygen/anygen/pkg/utils"
)

const sessionsLongDesc string = `Manage chat sessions.

The current session is remembered between invocations and continued by
"anygen chat". Use "sessions use" to switch to an existing one or
"sessions new" to start fresh.

Examples:
  anygen sessions ls
  anygen sessions new "Quarterly planning"
  anygen sessions use 7f3c...
  anygen sessions messages`

const sessionsShortDesc string = "Manage chat sessions"

type sessionsCommander struct {
	gateway string
	rag     string
	limit   int
}

func NewSessionsCmd() *cobra.Command {
	cmder := &sessionsCommander{}

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   sessionsShortDesc,
		Long:    sessionsLongDesc,
	}

	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagGateway, &cmder.gateway)
	config.AddPersistentStringFlag(cmd, config.Flags, config.FlagRAG, &cmder.rag)

	cmd.AddCommand(cmder.newListCmd())
	cmd.AddCommand(cmder.newNewCmd())
	cmd.AddCommand(cmder.newShowCmd())
	cmd.AddCommand(cmder.newRenameCmd())
	cmd.AddCommand(cmder.newUseCmd())
	cmd.AddCommand(cmder.newMessagesCmd())
	cmd.AddCommand(cmder.newCurrentCmd())

	return cmd
}

func (c *sessionsCommander) newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				sessions, err := gw.ListSessions(ctx, c.limit)
				if err != nil {
					return err
				}

				store, err := env.Sessions(ctx)
				if err != nil {
					return err
				}
				return printSessions(env.Out, sessions, store.Get())
			})
		},
	}
	cmd.Flags().IntVar(&c.limit, "limit", gateway.DefaultListLimit, "Maximum number of sessions to list")
	return cmd
}

func (c *sessionsCommander) newNewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Create a session and make it current",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := ""
			if len(args) == 1 {
				title = args[0]
			}

			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				s, err := gw.CreateSession(ctx, title)
				if err != nil {
					return err
				}
				if err := switchTo(ctx, env, gw, s.SessionID); err != nil {
					return err
				}

				fmt.Fprintf(env.Out, "%s Created session %s %s\n",
					cliui.SuccessMark, cliui.NameStyle.Render(s.SessionID), cliui.DimStyle.Render(s.Title))
				return nil
			})
		},
	}
}

func (c *sessionsCommander) newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a session (the current one by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				id, err := sessionArg(ctx, env, args)
				if err != nil {
					return err
				}

				s, err := gw.GetSession(ctx, id)
				if err != nil {
					return err
				}

				cliui.KV(env.Out, "id", s.SessionID)
				cliui.KV(env.Out, "title", s.Title)
				cliui.KV(env.Out, "messages", s.MessageCount)
				cliui.KV(env.Out, "created", formatUnix(s.CreatedAt))
				cliui.KV(env.Out, "updated", formatUnix(s.UpdatedAt))
				return nil
			})
		},
	}
}

func (c *sessionsCommander) newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, title := args[0], strings.Join(args[1:], " ")

			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				if err := gw.UpdateSessionTitle(ctx, id, title); err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s Renamed %s to %q\n", cliui.SuccessMark, cliui.NameStyle.Render(id), title)
				return nil
			})
		},
	}
}

func (c *sessionsCommander) newUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a session current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				s, err := gw.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				if err := switchTo(ctx, env, gw, s.SessionID); err != nil {
					return err
				}

				fmt.Fprintf(env.Out, "%s Switched to %s %s\n",
					cliui.SuccessMark, cliui.NameStyle.Render(s.SessionID), cliui.DimStyle.Render(s.Title))
				return nil
			})
		},
	}
}

func (c *sessionsCommander) newMessagesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "messages [id]",
		Aliases: []string{"history"},
		Short:   "Print the messages of a session (the current one by default)",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdenv.RunGateway(cmd, func(ctx context.Context, env *cmdenv.Env, gw *gateway.Client) error {
				id, err := sessionArg(ctx, env, args)
				if err != nil {
					return err
				}

				messages, err := gw.ListSessionMessages(ctx, id, limit)
				if err != nil {
					return err
				}
				printMessages(env.Out, messages)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", gateway.DefaultListLimit, "Maximum number of messages to print")
	return cmd
}

func (c *sessionsCommander) newCurrentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "current",
		Short: "Print the current session id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd)
			if err != nil {
				return err
			}
			defer env.Close()

			store, err := env.Sessions(cmd.Context())
			if err != nil {
				return err
			}

			id := store.Get()
			if id == "" {
				fmt.Fprintln(env.Out, cliui.DimStyle.Render("<none>"))
				return nil
			}
			fmt.Fprintln(env.Out, id)
			return nil
		},
	}
}

// switchTo records id as current both locally and on the gateway.
func switchTo(ctx context.Context, env *cmdenv.Env, gw *gateway.Client, id string) error {
	store, err := env.Sessions(ctx)
	if err != nil {
		return err
	}
	if err := store.Set(ctx, id); err != nil {
		return err
	}

	if err := gw.SetActiveSession(ctx, id); err != nil {
		env.Logger.Warn("setting active session on gateway", "session_id", id, "error", err)
	}
	return nil
}

func sessionArg(ctx context.Context, env *cmdenv.Env, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}

	store, err := env.Sessions(ctx)
	if err != nil {
		return "", err
	}
	id := store.Get()
	if id == "" {
		return "", fmt.Errorf("no current session: pass a session id or run \"anygen sessions use <id>\"")
	}
	return id, nil
}

func printSessions(w io.Writer, sessions []gateway.Session, current string) error {
	if len(sessions) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No sessions yet."))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  ID\tTITLE\tMESSAGES\tUPDATED")
	for _, s := range sessions {
		mark := " "
		if s.SessionID == current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s %s\t%s\t%d\t%s\n",
			mark, s.SessionID, utils.Truncate(s.Title, 40), s.MessageCount, formatUnix(s.UpdatedAt))
	}
	return tw.Flush()
}

func printMessages(w io.Writer, messages []gateway.Message) {
	if len(messages) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No messages."))
		return
	}

	for i, m := range messages {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s %s\n", cliui.HeaderStyle.Render(m.Role), cliui.DimStyle.Render(formatUnix(m.TS)))
		fmt.Fprintln(w, m.Content)
	}
}

func formatUnix(ts int64) string {
	if ts <= 0 {
		return "-"
	}
	return time.Unix(ts, 0).Local().Format("2006-01-02 15:04")
}
