package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rshanygen/anygen/pkg/gateway"
	"github.com/rshanygen/anygen/pkg/logger"
)

const (
	callbackPath = "/callback"

	defaultLoginTimeout = 5 * time.Minute
)

// ErrStateMismatch is returned when the callback state does not match the
// one sent with the authorize request.
var ErrStateMismatch = errors.New("login callback state mismatch")

// LoginOptions configures Login.
type LoginOptions struct {
	// Listen is the callback server address, e.g. "127.0.0.1:9310".
	Listen string

	// Listener overrides Listen with an existing listener.
	Listener net.Listener

	// OnAuthorizeURL receives the URL the user must open in a browser.
	OnAuthorizeURL func(authorizeURL string)

	// Timeout bounds how long Login waits for the callback.
	Timeout time.Duration

	Logger *slog.Logger

	now func() time.Time
}

// AuthorizeURL builds the identity provider authorize URL for redirectURI
// and state. When the gateway publishes no provider endpoint, the gateway's
// own login URL is used with redirect_uri and state replaced.
func AuthorizeURL(cfg *gateway.AuthConfig, redirectURI, state string) (string, error) {
	if cfg.CasdoorEndpoint == "" {
		if cfg.LoginURL == "" {
			return "", errors.New("gateway publishes no login endpoint")
		}
		u, err := url.Parse(cfg.LoginURL)
		if err != nil {
			return "", fmt.Errorf("invalid login URL: %w", err)
		}
		q := u.Query()
		q.Set("redirect_uri", redirectURI)
		q.Set("state", state)
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	q := url.Values{
		"client_id":     {cfg.ClientID},
		"response_type": {"code"},
		"scope":         {"openid profile email"},
		"redirect_uri":  {redirectURI},
		"state":         {state},
	}
	return cfg.CasdoorEndpoint + "/login/oauth/authorize?" + q.Encode(), nil
}

type callbackResult struct {
	code string
	err  error
}

// Login runs the authorization code flow: it serves a local callback,
// hands the authorize URL to OnAuthorizeURL, waits for the redirect, and
// exchanges the code for a token that is then stored.
func Login(ctx context.Context, gw Gateway, store TokenStore, opts LoginOptions) error {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLoginTimeout
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}

	cfg, err := gw.AuthConfig(ctx)
	if err != nil {
		return fmt.Errorf("fetching login configuration: %w", err)
	}

	ln := opts.Listener
	if ln == nil {
		ln, err = net.Listen("tcp", opts.Listen)
		if err != nil {
			return fmt.Errorf("starting callback server: %w", err)
		}
	}

	redirectURI := "http://" + ln.Addr().String() + callbackPath
	state := uuid.NewString()

	authorizeURL, err := AuthorizeURL(cfg, redirectURI, state)
	if err != nil {
		ln.Close()
		return err
	}

	results := make(chan callbackResult, 1)
	app := newCallbackApp(state, results)

	go func() {
		if err := app.Listener(ln); err != nil {
			log.Debug("callback server stopped", "error", err)
		}
	}()
	defer func() {
		if err := app.Shutdown(); err != nil {
			log.Debug("stopping callback server", "error", err)
		}
		// the listener may not have been picked up by the server yet
		_ = ln.Close()
	}()

	log.Debug("waiting for login callback", "redirect_uri", redirectURI)
	if opts.OnAuthorizeURL != nil {
		opts.OnAuthorizeURL(authorizeURL)
	}

	var code string
	select {
	case res := <-results:
		if res.err != nil {
			return res.err
		}
		code = res.code
	case <-time.After(opts.Timeout):
		return fmt.Errorf("timed out after %s waiting for login", opts.Timeout)
	case <-ctx.Done():
		return ctx.Err()
	}

	tok, err := gw.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	if tok.AccessToken == "" {
		return errors.New("gateway returned an empty access token")
	}

	if err := store.SetToken(toCredential(tok, now())); err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// newCallbackApp serves the redirect target. The first callback, valid or
// not, is delivered on results; later ones are ignored.
func newCallbackApp(state string, results chan<- callbackResult) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	deliver := func(res callbackResult) {
		select {
		case results <- res:
		default:
		}
	}

	app.Get(callbackPath, func(c *fiber.Ctx) error {
		if msg := c.Query("error"); msg != "" {
			if desc := c.Query("error_description"); desc != "" {
				msg += ": " + desc
			}
			deliver(callbackResult{err: fmt.Errorf("login failed: %s", msg)})
			return c.Status(fiber.StatusBadRequest).SendString("Login failed. You can close this window.")
		}

		if c.Query("state") != state {
			deliver(callbackResult{err: ErrStateMismatch})
			return c.Status(fiber.StatusBadRequest).SendString("Login state mismatch. You can close this window.")
		}

		code := c.Query("code")
		if code == "" {
			deliver(callbackResult{err: errors.New("login callback carried no code")})
			return c.Status(fiber.StatusBadRequest).SendString("Missing authorization code.")
		}

		deliver(callbackResult{code: code})
		return c.SendString("Login complete. You can close this window and return to the terminal.")
	})

	return app
}
