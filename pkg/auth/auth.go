// Package auth implements the login flows against the gateway's identity
// provider and the admin role check used by administrative commands.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rshanygen/anygen/pkg/credentials"
	"github.com/rshanygen/anygen/pkg/gateway"
)

// AdminRole is the role required by administrative endpoints.
const AdminRole = "admin"

var (
	// ErrNotAdmin is returned by RequireAdmin when the user lacks AdminRole.
	ErrNotAdmin = errors.New("this command requires the admin role")

	// ErrNotLoggedIn is returned when no usable token is stored.
	ErrNotLoggedIn = errors.New("not logged in: run \"anygen auth login\"")
)

// Gateway is the subset of the gateway client used by this package.
type Gateway interface {
	AuthConfig(ctx context.Context) (*gateway.AuthConfig, error)
	ExchangeCode(ctx context.Context, code, redirectURI string) (*gateway.Token, error)
	UserInfo(ctx context.Context) (*gateway.UserInfo, error)
}

// TokenStore persists the gateway token. *credentials.Manager implements it.
type TokenStore interface {
	SetToken(tok credentials.GatewayToken) error
	RemoveToken() error
}

// toCredential converts an exchanged token into its stored form.
func toCredential(tok *gateway.Token, now time.Time) credentials.GatewayToken {
	cred := credentials.GatewayToken{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if tok.ExpiresIn > 0 {
		cred.ExpiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second).UTC()
	}
	return cred
}

// SaveRawToken stores a token obtained outside the login flow. It never
// expires locally; the gateway rejects it once it is no longer valid.
func SaveRawToken(store TokenStore, token string) error {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return errors.New("token is empty")
	}
	return store.SetToken(credentials.GatewayToken{
		AccessToken: token,
		TokenType:   "bearer",
	})
}

// Logout removes the stored token.
func Logout(store TokenStore) error {
	if err := store.RemoveToken(); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

// WhoAmI returns the user the stored token belongs to.
func WhoAmI(ctx context.Context, gw Gateway) (*gateway.UserInfo, error) {
	info, err := gw.UserInfo(ctx)
	if err != nil {
		if gateway.IsUnauthorized(err) {
			return nil, fmt.Errorf("%w (%w)", ErrNotLoggedIn, err)
		}
		return nil, fmt.Errorf("fetching user info: %w", err)
	}
	return info, nil
}

// RequireAdmin returns ErrNotAdmin unless the current user holds AdminRole.
func RequireAdmin(ctx context.Context, gw Gateway) (*gateway.UserInfo, error) {
	info, err := WhoAmI(ctx, gw)
	if err != nil {
		return nil, err
	}
	if !info.HasRole(AdminRole) {
		return info, ErrNotAdmin
	}
	return info, nil
}
