package credentials

import "time"

// Credentials represents the stored gateway credentials in credentials.toml.
type Credentials struct {
	Version int           `toml:"version"`
	Gateway *GatewayToken `toml:"gateway,omitempty"`
}

// GatewayToken is the bearer token issued by the gateway's auth endpoints
// (or pasted in by hand for the custom-token login flow).
type GatewayToken struct {
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenType    string    `toml:"token_type,omitempty"`
	ExpiresAt    time.Time `toml:"expires_at,omitempty"`
}

// Expired reports whether the token has an expiry that lies before now.
// Tokens without an expiry never expire locally; the gateway decides.
func (t *GatewayToken) Expired(now time.Time) bool {
	if t == nil || t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(t.ExpiresAt)
}
