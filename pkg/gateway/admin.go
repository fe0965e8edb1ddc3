package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// ListUsers pages through user accounts.
func (c *Client) ListUsers(ctx context.Context, opts ListUsersOptions) ([]User, error) {
	if opts.Max <= 0 {
		opts.Max = DefaultListLimit
	}
	q := url.Values{
		"first": {strconv.Itoa(opts.First)},
		"max":   {strconv.Itoa(opts.Max)},
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}

	var out []User
	err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/admin/users", q, nil, &out)
	return out, err
}

// GetUser returns one user account.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	var out User
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/admin/users/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateUser creates an account and returns its id.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	var out CreatedUser
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL, apiPrefix+"/admin/users", nil, req, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UpdateUser changes profile fields of an account.
func (c *Client) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	return c.doJSON(ctx, http.MethodPatch, c.baseURL, apiPrefix+"/admin/users/"+url.PathEscape(id), nil, req, &statusResponse{})
}

// ResetUserPassword sets a new password for an account.
func (c *Client) ResetUserPassword(ctx context.Context, id string, req ResetPasswordRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	path := apiPrefix + "/admin/users/" + url.PathEscape(id) + "/reset-password"
	return c.doJSON(ctx, http.MethodPost, c.baseURL, path, nil, req, &statusResponse{})
}

// ListRoles returns every realm role.
func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/admin/roles", nil, nil, &out)
	return out, err
}

// UpdateUserRoles grants and revokes realm roles.
func (c *Client) UpdateUserRoles(ctx context.Context, id string, req UpdateRolesRequest) error {
	if len(req.Add) == 0 && len(req.Remove) == 0 {
		return errors.New("invalid request: no roles to add or remove")
	}
	if req.Add == nil {
		req.Add = []string{}
	}
	if req.Remove == nil {
		req.Remove = []string{}
	}
	if err := validateRequest(req); err != nil {
		return err
	}
	path := apiPrefix + "/admin/users/" + url.PathEscape(id) + "/roles"
	return c.doJSON(ctx, http.MethodPost, c.baseURL, path, nil, req, &statusResponse{})
}
