// Package cmdenv assembles what anygen commands share: resolved
// configuration, the logger, stored credentials, the preference store and
// the gateway clients.
package cmdenv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rshanygen/anygen/cmd/anygen/prefspath"
	"github.com/rshanygen/anygen/pkg/auth"
	"github.com/rshanygen/anygen/pkg/chat"
	"github.com/rshanygen/anygen/pkg/cliui"
	"github.com/rshanygen/anygen/pkg/config"
	"github.com/rshanygen/anygen/pkg/credentials"
	"github.com/rshanygen/anygen/pkg/gateway"
	"github.com/rshanygen/anygen/pkg/logger"
	"github.com/rshanygen/anygen/pkg/prefs"
	"github.com/rshanygen/anygen/pkg/prefs/sqlite"
	"github.com/rshanygen/anygen/pkg/session"
)

// Env is the per-invocation command environment. Stores are opened lazily
// and released by Close.
type Env struct {
	ConfigDir string
	Debug     bool
	Viper     *viper.Viper
	Logger    *slog.Logger

	Out io.Writer
	Err io.Writer

	creds    *credentials.Manager
	prefs    *prefs.Storage
	sessions *session.Store
}

// FromCommand reads the persistent flags of cmd, initializes viper and binds
// the given flag registry keys so flag > env > config file > default.
func FromCommand(cmd *cobra.Command, flagKeys ...string) (*Env, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")
	jsonLogs, _ := cmd.Flags().GetBool("json-logs")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, flagKeys)

	errOut := cmd.ErrOrStderr()
	pretty := false
	if f, ok := errOut.(*os.File); ok {
		pretty = !jsonLogs && cliui.IsTerminal(f)
	}

	return &Env{
		ConfigDir: configDir,
		Debug:     debug,
		Viper:     v,
		Logger: logger.New(
			logger.WithDebug(debug),
			logger.WithPretty(pretty),
			logger.WithJSON(jsonLogs),
			logger.WithWriter(errOut),
		),
		Out: cmd.OutOrStdout(),
		Err: errOut,
	}, nil
}

// GatewayFunc is the body of a command that talks to the gateway REST API.
type GatewayFunc func(ctx context.Context, env *Env, gw *gateway.Client) error

// RunGateway opens the environment for cmd, builds the gateway client and
// runs fn. The environment is closed when fn returns.
func RunGateway(cmd *cobra.Command, fn GatewayFunc) error {
	env, err := FromCommand(cmd, config.FlagGateway, config.FlagRAG, config.FlagPrefsPath)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	gw, err := env.Gateway(ctx)
	if err != nil {
		return err
	}
	return fn(ctx, env, gw)
}

// RunAdmin is RunGateway for commands reserved to administrators. The
// current user's roles are checked before fn runs.
func RunAdmin(cmd *cobra.Command, fn GatewayFunc) error {
	return RunGateway(cmd, func(ctx context.Context, env *Env, gw *gateway.Client) error {
		user, err := auth.RequireAdmin(ctx, gw)
		if err != nil {
			return err
		}
		env.Logger.Debug("admin check passed", "username", user.Username)
		return fn(ctx, env, gw)
	})
}

// Credentials returns the credentials manager.
func (e *Env) Credentials() (*credentials.Manager, error) {
	if e.creds != nil {
		return e.creds, nil
	}

	mgr, err := credentials.NewManager(e.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}
	e.creds = mgr
	return mgr, nil
}

// Prefs opens the preference store, migrating unprefixed entries written by
// older clients on first use.
func (e *Env) Prefs(ctx context.Context) (*prefs.Storage, error) {
	if e.prefs != nil {
		return e.prefs, nil
	}

	path, err := prefspath.ResolvePrefsPath(e.Viper.GetString("storage.prefs_path"), e.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("resolving preferences path: %w", err)
	}

	backend, err := sqlite.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening preferences: %w", err)
	}

	storage := prefs.New(backend, prefs.WithLogger(e.Logger))
	if err := storage.MigrateLegacy(ctx, prefs.LegacyKeys...); err != nil {
		e.Logger.Warn("migrating legacy preferences", "error", err)
	}

	e.Logger.Debug("opened preferences", "path", path)
	e.prefs = storage
	return storage, nil
}

// Sessions returns the persisted session store.
func (e *Env) Sessions(ctx context.Context) (*session.Store, error) {
	if e.sessions != nil {
		return e.sessions, nil
	}

	p, err := e.Prefs(ctx)
	if err != nil {
		return nil, err
	}

	store := session.NewStore(p)
	if err := store.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	e.sessions = store
	return store, nil
}

// GatewayURL returns the resolved gateway base URL.
func (e *Env) GatewayURL() string {
	return e.Viper.GetString("gateway.url")
}

// Gateway builds a REST client carrying the stored token and session id.
func (e *Env) Gateway(ctx context.Context) (*gateway.Client, error) {
	creds, err := e.Credentials()
	if err != nil {
		return nil, err
	}
	sessions, err := e.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	return gateway.New(e.GatewayURL(),
		gateway.WithToken(creds),
		gateway.WithSessionID(sessions.Get),
		gateway.WithRAGURL(e.Viper.GetString("rag.url")),
		gateway.WithLogger(e.Logger),
	)
}

// Chat builds the streaming chat client.
func (e *Env) Chat() (*chat.Client, error) {
	return chat.New(e.GatewayURL(), chat.WithLogger(e.Logger))
}

// Token returns the stored token, or "" when none is usable.
func (e *Env) Token() (string, error) {
	creds, err := e.Credentials()
	if err != nil {
		return "", err
	}
	return creds.Token()
}

// Close releases the stores opened by e.
func (e *Env) Close() error {
	var errs []error
	if e.prefs != nil {
		errs = append(errs, e.prefs.Close())
		e.prefs = nil
		e.sessions = nil
	}
	return errors.Join(errs...)
}

// ReadSecret prompts on stderr and reads one line from the command's input,
// without echo when it is a terminal.
func ReadSecret(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		if cliui.IsTerminal(f) {
			fmt.Fprint(cmd.ErrOrStderr(), prompt)
			defer fmt.Fprintln(cmd.ErrOrStderr())
		}
		return cliui.ReadSecret(f)
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
