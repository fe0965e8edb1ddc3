// Package header provides header filtering for the anygen dev proxy.
//
// The proxy sits between a browser or CLI and the gateway services:
//
//	Client <--> Proxy <--> Gateway / RAG service
//
// and headers are handled accordingly as each leg negotiates compression, hops,
// encoding, etc. independently.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rshanygen/anygen/pkg/session"
)

const (
	// RequestIDHeader correlates a proxied request across both legs.
	RequestIDHeader = "X-Request-ID"

	// SessionIDHeader carries the chat session id in both directions.
	SessionIDHeader = session.Header
)

// Handler manages headers between proxy connections.
type Handler struct {
	newID func() string
}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{newID: uuid.NewString}
}

// skipRequest is the set of request headers (client --> proxy --> upstream)
// that are not forwarded upstream.
var skipRequest = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// Go's http.Transport sets Host from the upstream URL.
	"Host": {},

	// Stripped so http.Transport negotiates gzip itself and transparently
	// decompresses the upstream response.
	"Accept-Encoding": {},

	// The body is re-sent from the buffered copy; http.Transport computes
	// the length.
	"Content-Length": {},
}

// skipResponse is the set of upstream response headers (client <-- proxy <-- upstream)
// that are not copied back to the downstream client.
var skipResponse = map[string]struct{}{
	// Hop-by-hop headers: only meaningful for a single transport-level connection.
	"Connection": {},

	// fasthttp manages chunked transfer encoding for the client-facing
	// response independently.
	"Transfer-Encoding": {},

	// The proxy reads a decompressed body, so the upstream encoding no
	// longer applies. Fiber's compress middleware sets its own.
	"Content-Encoding": {},

	// The upstream length describes the possibly compressed upstream body.
	"Content-Length": {},
}

// SetUpstreamRequestHeaders copies request headers from the Fiber context to
// the outgoing http.Request, filtering headers that the proxy should not forward
// upstream. A request id is added when the client sent none; the id in use is
// returned.
func (h *Handler) SetUpstreamRequestHeaders(c *fiber.Ctx, req *http.Request) string {
	c.Request().Header.VisitAll(func(key, value []byte) {
		k := http.CanonicalHeaderKey(string(key))
		if _, skip := skipRequest[k]; !skip {
			req.Header.Set(k, string(value))
		}
	})

	id := req.Header.Get(RequestIDHeader)
	if id == "" {
		id = h.newID()
		req.Header.Set(RequestIDHeader, id)
	}
	return id
}

// InjectDefaults sets the bearer token and session id on req unless the
// client already sent them. Empty values are not injected.
func (h *Handler) InjectDefaults(req *http.Request, token, sessionID string) {
	if token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if sessionID != "" && req.Header.Get(SessionIDHeader) == "" {
		req.Header.Set(SessionIDHeader, sessionID)
	}
}

// SetClientResponseHeaders copies response headers from the upstream
// http.Response to the Fiber context, filtering headers that the proxy should
// not forward back down to the client.
func (h *Handler) SetClientResponseHeaders(c *fiber.Ctx, resp *http.Response) {
	for k, v := range resp.Header {
		if _, skip := skipResponse[k]; !skip {
			c.Set(k, strings.Join(v, ", "))
		}
	}
}
