// Package chatcmder provides the chat command: one-shot questions and an
// interactive chat against the gateway's streaming endpoint.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/cmd/anygen/cmdenv"
	"github.com/rshanygen/anygen/pkg/chat"
	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/config"
	"github.com/rshanygen/anygen/pkg/prefs"
	"github.com/rshanygen/anygen/pkg/session"
	"github.com/rshanygen/anygen/pkg/sse"
	"github.com/rshanygen/anygen/pkg/utils"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

type chatCommander struct {
	gateway    string
	model      string
	search     bool
	kbIDs      []string
	render     bool
	newSession bool
	noStream   bool

	env      *cmdenv.Env
	client   *chat.Client
	sessions *session.Store
	token    string

	in         io.Reader
	out        io.Writer
	errOut     io.Writer
	interrupts <-chan os.Signal
}

const chatLongDesc string = `Chat with the AnyGen assistant.

With a message argument, a single question is sent and the streamed answer
printed. Without one, an interactive chat starts; the conversation continues
in the current session until /new or --new-session starts another.

Ctrl+C cancels the answer being streamed. At the prompt it exits.

Interactive commands:
  /new       start a new session
  /session   show the current session id
  /exit      quit (Ctrl+D works too)

Examples:
  anygen chat
  anygen chat "summarize the onboarding guide" --kb kb-123
  anygen chat --search --model glm-4 "what changed in Go 1.25?"`

const chatShortDesc string = "Chat with the assistant"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := cmdenv.FromCommand(cmd, config.FlagGateway, config.FlagModel, config.FlagSearch)
			if err != nil {
				return err
			}
			defer env.Close()

			cmder.env = env
			cmder.model = env.Viper.GetString("chat.model")
			cmder.search = env.Viper.GetBool("chat.enable_search")
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.errOut = cmd.ErrOrStderr()

			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, os.Interrupt)
			defer signal.Stop(interrupts)
			cmder.interrupts = interrupts

			return cmder.run(cmd.Context(), args, cmd.Flags().Changed("kb"))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagGateway, &cmder.gateway)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddBoolFlag(cmd, config.Flags, config.FlagSearch, &cmder.search)
	cmd.Flags().StringSliceVar(&cmder.kbIDs, "kb", nil, "Knowledge base id to answer from (repeatable; remembered)")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the answer as markdown once complete")
	cmd.Flags().BoolVar(&cmder.newSession, "new-session", false, "Start a new session")
	cmd.Flags().BoolVar(&cmder.noStream, "no-stream", false, "Wait for the complete answer instead of streaming")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, args []string, kbChanged bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var err error
	c.client, err = c.env.Chat()
	if err != nil {
		return err
	}

	c.sessions, err = c.env.Sessions(ctx)
	if err != nil {
		return err
	}
	if c.newSession {
		if err := c.sessions.Clear(ctx); err != nil {
			return err
		}
	}

	if err := c.resolvePrefs(ctx, kbChanged); err != nil {
		return err
	}

	c.token, err = c.env.Token()
	if err != nil {
		return err
	}
	if c.token == "" {
		c.env.Logger.Debug("no stored token, sending unauthenticated requests")
	}

	if len(args) > 0 {
		err := c.turn(ctx, strings.Join(args, " "))
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			return nil
		}
		return err
	}
	return c.repl(ctx)
}

// resolvePrefs remembers --kb selections and falls back to the remembered
// ones. The model.name preference applies when no model is configured.
func (c *chatCommander) resolvePrefs(ctx context.Context, kbChanged bool) error {
	store, err := c.env.Prefs(ctx)
	if err != nil {
		return err
	}

	if c.model == "" {
		if _, err := store.Get(ctx, prefs.KeyModelName, &c.model); err != nil {
			return err
		}
	}

	if kbChanged {
		return store.Set(ctx, prefs.KeyChatKBIDs, c.kbIDs)
	}

	_, err = store.Get(ctx, prefs.KeyChatKBIDs, &c.kbIDs)
	return err
}

func (c *chatCommander) options() chat.Options {
	return chat.Options{
		SessionID:    c.sessions.Get(),
		Token:        c.token,
		EnableSearch: c.search,
		KBIDs:        c.kbIDs,
		Model:        c.model,
	}
}

// turn sends one message and prints the answer.
func (c *chatCommander) turn(ctx context.Context, message string) error {
	if c.noStream {
		return c.sendTurn(ctx, message)
	}

	var transcript chat.Transcript
	h := transcript.Handlers(sse.Handlers{
		OnThinking: func(label string) {
			fmt.Fprintf(c.errOut, "%s\n", cliui.ThinkingStyle.Render("… "+label))
		},
		OnChunk: func(s string) {
			if !c.render {
				fmt.Fprint(c.out, s)
			}
		},
	})

	run := c.client.Stream(ctx, message, c.options(), h)
	select {
	case <-run.Done():
	case <-c.interrupts:
		run.Cancel()
	}
	res := run.Wait()

	if res.SessionID != "" {
		if err := c.sessions.Set(ctx, res.SessionID); err != nil {
			c.env.Logger.Warn("saving session id", "error", err)
		}
	}

	if errors.Is(res.Err, context.Canceled) {
		fmt.Fprintf(c.out, "\n%s\n", cliui.DimStyle.Render("(cancelled)"))
		return res.Err
	}
	if res.Err != nil {
		if transcript.Chunks() > 0 && !c.render {
			fmt.Fprintln(c.out)
		}
		return res.Err
	}

	c.env.Logger.Debug("answer complete",
		"session_id", res.SessionID,
		"chunks", transcript.Chunks(),
		"duration", cliui.FormatDuration(res.Duration),
	)

	return c.printAnswer(transcript.Content(), !c.render)
}

func (c *chatCommander) sendTurn(ctx context.Context, message string) error {
	resp, err := c.client.Send(ctx, message, c.options())
	if err != nil {
		return err
	}
	if resp.SessionID != "" {
		if err := c.sessions.Set(ctx, resp.SessionID); err != nil {
			c.env.Logger.Warn("saving session id", "error", err)
		}
	}
	if !c.render {
		fmt.Fprint(c.out, resp.Content)
	}
	return c.printAnswer(resp.Content, !c.render)
}

// printAnswer finishes an answer. When streamed is true the content has
// already been written.
func (c *chatCommander) printAnswer(content string, streamed bool) error {
	if streamed {
		fmt.Fprintln(c.out)
		return nil
	}

	rendered, err := cliui.RenderMarkdown(content)
	if err != nil {
		c.env.Logger.Debug("rendering markdown", "error", err)
	}
	fmt.Fprint(c.out, rendered)
	return nil
}

// readLines feeds input lines to a channel that is closed at EOF. It stops
// early once done is closed.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return lines
}

func (c *chatCommander) repl(ctx context.Context) error {
	if id := c.sessions.Get(); id != "" {
		fmt.Fprintf(c.out, "%s Continuing session %s\n", cliui.SuccessMark, cliui.NameStyle.Render(utils.Truncate(id, 16)))
	} else {
		fmt.Fprintf(c.out, "%s New session\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(c.out, "%s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	done := make(chan struct{})
	defer close(done)
	lines := readLines(c.in, done)

	for {
		fmt.Fprint(c.out, userPrompt)

		var input string
		select {
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
			input = strings.TrimSpace(line)
		case <-c.interrupts:
			fmt.Fprintln(c.out)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

		switch input {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/new":
			if err := c.sessions.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "%s New session\n", cliui.DimStyle.Render("●"))
			continue
		case "/session":
			id := c.sessions.Get()
			if id == "" {
				id = "<none>"
			}
			cliui.KV(c.out, "session", id)
			continue
		}

		fmt.Fprint(c.out, assistantPrompt)
		if err := c.turn(ctx, input); err != nil && !errors.Is(err, context.Canceled) {
			// keep the chat alive after a failed turn
			cliui.Errorf(c.errOut, "%v", err)
		}
		fmt.Fprintln(c.out)
	}
}
