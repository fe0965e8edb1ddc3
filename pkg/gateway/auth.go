package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// AuthConfig fetches the login configuration.
func (c *Client) AuthConfig(ctx context.Context) (*AuthConfig, error) {
	var out AuthConfig
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/auth/config", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangeCode trades an authorization code for a token. redirectURI must
// match the one used to obtain the code.
func (c *Client) ExchangeCode(ctx context.Context, code, redirectURI string) (*Token, error) {
	q := url.Values{"code": {code}}
	if redirectURI != "" {
		q.Set("redirect_uri", redirectURI)
	}

	var out Token
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL, apiPrefix+"/auth/token", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserInfo returns the user the current token belongs to.
func (c *Client) UserInfo(ctx context.Context) (*UserInfo, error) {
	var out UserInfo
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/auth/userinfo", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
