package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// ListKBs returns every knowledge base.
func (c *Client) ListKBs(ctx context.Context) ([]KnowledgeBase, error) {
	var out []KnowledgeBase
	err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/kb", nil, nil, &out)
	return out, err
}

// CreateKB creates a knowledge base. An empty embeddingModel uses
// DefaultEmbeddingModel.
func (c *Client) CreateKB(ctx context.Context, name, description, embeddingModel string) (*KnowledgeBase, error) {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	req := CreateKBRequest{Name: name, Description: description, EmbeddingModel: embeddingModel}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var out KnowledgeBase
	if err := c.doJSON(ctx, http.MethodPost, c.baseURL, apiPrefix+"/kb", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetKB returns one knowledge base.
func (c *Client) GetKB(ctx context.Context, id string) (*KnowledgeBase, error) {
	var out KnowledgeBase
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL, apiPrefix+"/kb/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateKB changes a knowledge base's name or description.
func (c *Client) UpdateKB(ctx context.Context, id string, req UpdateKBRequest) (*KnowledgeBase, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var out KnowledgeBase
	if err := c.doJSON(ctx, http.MethodPut, c.baseURL, apiPrefix+"/kb/"+url.PathEscape(id), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteKB removes a knowledge base.
func (c *Client) DeleteKB(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, c.baseURL, apiPrefix+"/kb/"+url.PathEscape(id), nil, nil, nil)
}
