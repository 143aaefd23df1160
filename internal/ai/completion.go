// Package ai holds the HTTP clients for the external services the
// assisted-intake loop depends on: a chat completion service and a
// knowledge retrieval service. Both carry hard request timeouts so a
// slow dependency can never leave a caller waiting on the line.
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

// Message is one turn of conversation history sent to the completion
// service.
type Message struct {
	Role    string `json:"role"` // "system" | "user" | "assistant"
	Content string `json:"content"`
}

// CompletionClient produces a completion for a prompt plus conversation
// history. Implementations must respect ctx cancellation.
type CompletionClient interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// completionRequest is the chat-completions payload.
type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// completionResponse is the subset of the chat-completions reply we read.
type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// HTTPCompletionClient calls an OpenAI-compatible chat completions
// endpoint.
type HTTPCompletionClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// NewCompletionClient creates a completion client. timeout is the hard
// per-request budget; a turn that exceeds it is abandoned and the intake
// loop falls back to its static escalation prompt.
func NewCompletionClient(baseURL, apiKey, model string, timeout time.Duration) *HTTPCompletionClient {
	return &HTTPCompletionClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

// Complete sends the conversation and returns the assistant's reply text.
func (c *HTTPCompletionClient) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   300,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("completion: marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("completion: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion: sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("completion: reading response: %w", err)
	}

	var out completionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("completion: decoding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("completion: service error (status %d): %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("completion: service returned status %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("completion: empty choices")
	}
	return out.Choices[0].Message.Content, nil
}
