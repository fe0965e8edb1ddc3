// Package servecmder provides the serve command, which runs the development
// proxy in front of the gateway and the RAG pipeline.
package servecmder

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshanygen/anygen/cmd/anygen/cmdenv"
	"github.com/rshanygen/anygen/pkg/config"
	"github.com/rshanygen/anygen/pkg/logger"
	"github.com/rshanygen/anygen/proxy"
)

type serveCommander struct {
	listen  string
	gateway string
	rag     string
	logFile string

	env *cmdenv.Env
}

const serveLongDesc string = `Run the development proxy.

The proxy serves /api/* for local front ends and tools: ingest, document and
search calls go to the RAG pipeline (--rag), everything else to the gateway
(--gateway). /rag/* reaches the RAG pipeline with the prefix stripped.

Requests without credentials get the stored token and current session id.
Session ids announced by the gateway become the current session, so "anygen
chat" continues conversations started through the proxy.

Chat streams are forwarded as they arrive.`

const serveShortDesc string = "Run the dev proxy"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := cmdenv.FromCommand(cmd,
				config.FlagProxyListen, config.FlagGateway, config.FlagRAG, config.FlagPrefsPath)
			if err != nil {
				return err
			}
			defer env.Close()
			cmder.env = env

			if cmder.logFile != "" {
				f, err := os.OpenFile(cmder.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()

				env.Logger = logger.Multi(env.Logger, logger.New(
					logger.WithWriter(f),
					logger.WithJSON(true),
					logger.WithDebug(env.Debug),
				))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cmder.run(ctx)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagGateway, &cmder.gateway)
	config.AddStringFlag(cmd, config.Flags, config.FlagRAG, &cmder.rag)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	creds, err := c.env.Credentials()
	if err != nil {
		return err
	}
	sessions, err := c.env.Sessions(ctx)
	if err != nil {
		return err
	}

	listen := c.env.Viper.GetString("proxy.listen")
	gatewayURL := c.env.GatewayURL()
	ragURL := c.env.Viper.GetString("rag.url")
	for _, u := range []string{gatewayURL, ragURL} {
		if pointsAt(u, listen) {
			return fmt.Errorf("%s is the proxy's own address: pass --gateway and --rag, or run \"anygen config preset local\"", u)
		}
	}

	p, err := proxy.New(proxy.Config{
		ListenAddr: listen,
		GatewayURL: gatewayURL,
		RAGURL:     ragURL,
		Tokens:     creds,
		Sessions:   sessions,
	}, c.env.Logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run()
	}()

	select {
	case err := <-errCh:
		_ = p.Close()
		return err
	case <-ctx.Done():
		c.env.Logger.Info("shutting down proxy")
		if err := p.Close(); err != nil {
			return fmt.Errorf("shutting down proxy: %w", err)
		}
		return <-errCh
	}
}

// pointsAt reports whether rawURL targets the local listen address.
func pointsAt(rawURL, listen string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host, port, err := net.SplitHostPort(listen)
	if err != nil || port != u.Port() {
		return false
	}

	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return host == "" || host == "localhost" || host == "0.0.0.0" || net.ParseIP(host).IsLoopback()
	}
	return false
}
