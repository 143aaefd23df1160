package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Snippet is one ranked knowledge result. Snippets ground assisted
// answers; they are never authoritative on their own.
type Snippet struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// KnowledgeClient returns ranked snippets for a free-text query.
type KnowledgeClient interface {
	Search(ctx context.Context, query string, topK int) ([]Snippet, error)
}

type searchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type searchResponse struct {
	Results []Snippet `json:"results"`
	Error   string    `json:"error,omitempty"`
}

// HTTPKnowledgeClient calls the knowledge retrieval service.
type HTTPKnowledgeClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewKnowledgeClient creates a knowledge retrieval client.
func NewKnowledgeClient(baseURL, apiKey string, timeout time.Duration) *HTTPKnowledgeClient {
	return &HTTPKnowledgeClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

// Search returns up to topK snippets ranked by relevance.
func (c *HTTPKnowledgeClient) Search(ctx context.Context, query string, topK int) ([]Snippet, error) {
	body, err := json.Marshal(searchRequest{Query: query, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("knowledge: marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("knowledge: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("knowledge: reading response: %w", err)
	}

	var out searchResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("knowledge: decoding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != "" {
			return nil, fmt.Errorf("knowledge: service error (status %d): %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("knowledge: service returned status %d", resp.StatusCode)
	}
	return out.Results, nil
}
