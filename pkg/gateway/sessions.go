package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

const (
	// DefaultSessionTitle is the title given to sessions created without one.
	DefaultSessionTitle = "新会话"

	// DefaultListLimit is the page size used by list calls.
	DefaultListLimit = 50
)

func limitQuery(limit int) url.Values {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return url.Values{"limit": {strconv.Itoa(limit)}}
}

// ListSessions returns the user's most recent sessions.
func (c *Client) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	var out []Session
	err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/sessions", limitQuery(limit), nil, &out)
	return out, err
}

// CreateSession creates a session and makes it the active one. An empty
// title uses DefaultSessionTitle.
func (c *Client) CreateSession(ctx context.Context, title string) (*Session, error) {
	if title == "" {
		title = DefaultSessionTitle
	}
	req := CreateSessionRequest{Title: title}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var out Session
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL, apiPrefix+"/sessions", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession returns one session.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	var out Session
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/sessions/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSessionTitle renames a session.
func (c *Client) UpdateSessionTitle(ctx context.Context, id, title string) error {
	req := UpdateSessionRequest{Title: title}
	if err := validateRequest(req); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPatch, c.baseURL, apiPrefix+"/sessions/"+url.PathEscape(id), nil, req, &statusResponse{})
}

// GetActiveSession returns the user's active session id, or "" when none is set.
func (c *Client) GetActiveSession(ctx context.Context) (string, error) {
	var out ActiveSession
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/sessions/active", nil, nil, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// SetActiveSession selects the user's active session.
func (c *Client) SetActiveSession(ctx context.Context, id string) error {
	req := setActiveRequest{SessionID: id}
	if err := validateRequest(req); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPost, c.baseURL, apiPrefix+"/sessions/active", nil, req, &statusResponse{})
}

// ListSessionMessages returns the latest messages of a session, oldest first.
func (c *Client) ListSessionMessages(ctx context.Context, id string, limit int) ([]Message, error) {
	var out []Message
	err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/sessions/"+url.PathEscape(id)+"/messages", limitQuery(limit), nil, &out)
	return out, err
}
