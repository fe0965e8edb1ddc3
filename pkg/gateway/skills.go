package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// ListSkills returns every skill with its enabled state.
func (c *Client) ListSkills(ctx context.Context) ([]Skill, error) {
	var out SkillList
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/skills", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Skills, nil
}

// GetSkill returns one skill.
func (c *Client) GetSkill(ctx context.Context, id string) (*Skill, error) {
	var out Skill
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/skills/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ToggleSkill enables or disables a skill and returns its new state.
func (c *Client) ToggleSkill(ctx context.Context, id string, enabled bool) (*Skill, error) {
	var out Skill
	path := apiPrefix + "/skills/" + url.PathEscape(id) + "/toggle"
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL, path, nil, toggleSkillRequest{Enabled: enabled}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
