package proxy

import (
	"github.com/rshanygen/anygen/pkg/session"
)

// TokenSource returns the bearer token injected into requests that carry
// none. *credentials.Manager implements it.
type TokenSource interface {
	Token() (string, error)
}

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":9300")
	ListenAddr string

	// GatewayURL is the gateway base URL (e.g., "http://localhost:9301").
	GatewayURL string

	// RAGURL is the RAG service base URL (e.g., "http://localhost:9305").
	RAGURL string

	// Tokens is optional. When set, its token is injected into requests
	// without an Authorization header.
	Tokens TokenSource

	// Sessions is optional. When set, its id is injected into requests
	// without an X-Session-ID header, and ids announced by the gateway are
	// recorded into it.
	Sessions *session.Store
}
