package gateway

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// UploadFile sends a document to the RAG service for chunking and indexing.
// The body is streamed as the multipart "file" field.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (*IngestResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(filename))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := c.newRequest(ctx, http.MethodPost, c.ragURL, apiPrefix+"/ingest/file", nil, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out IngestResult
	if err := c.do(req, &out); err != nil {
		pr.Close()
		return nil, fmt.Errorf("uploading %s: %w", filename, err)
	}
	return &out, nil
}

// IngestText indexes raw text under docID.
func (c *Client) IngestText(ctx context.Context, text, docID string, metadata map[string]any) (*IngestResult, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	req := IngestTextRequest{Text: text, DocID: docID, Metadata: metadata}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var out IngestResult
	if err := c.doJSON(ctx, http.MethodPost, c.ragURL, apiPrefix+"/ingest/text", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search retrieves the chunks most similar to query.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if req.TopK == 0 {
		req.TopK = 5
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	var out []SearchResult
	err := c.doJSON(ctx, http.MethodPost, c.ragURL, apiPrefix+"/search", nil, req, &out)
	return out, err
}

// CollectionStatus reports the RAG service status and active collection.
func (c *Client) CollectionStatus(ctx context.Context) (*CollectionStatus, error) {
	var out CollectionStatus
	if err := c.doJSON(ctx, http.MethodGet, c.ragURL, "/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
