package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"newsdesk/internal/config"
	"newsdesk/internal/ports"
)

// Client implements ports.ChatCompleter backed by OpenAI-compatible APIs.
// The underlying HTTP client is created lazily on first call and shared by
// all requests until Close releases its idle connections.
type Client struct {
	endpoint string
	model    string
	apiKey   string

	once sync.Once
	http *http.Client
}

var _ ports.ChatCompleter = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg config.OpenAIConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
	}
}

func (c *Client) session() *http.Client {
	c.once.Do(func() {
		if c.http == nil {
			c.http = &http.Client{Timeout: 60 * time.Second}
		}
	})
	return c.http
}

// Close releases the shared session. Safe to call multiple times.
func (c *Client) Close() {
	if c.http != nil {
		c.http.CloseIdleConnections()
	}
}

type completionRequest struct {
	Model     string              `json:"model"`
	Messages  []completionMessage `json:"messages"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete posts one chat-completion request and returns the first choice.
// Connection failures, timeouts, rate limits, and server errors come back
// wrapped in ports.ErrTransient.
func (c *Client) Complete(ctx context.Context, req ports.ChatRequest) (string, error) {
	if c.apiKey == "" || c.endpoint == "" {
		return "", fmt.Errorf("openai client misconfigured")
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	messages := make([]completionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, completionMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(completionRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.session().Do(httpReq)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if transientStatus(resp.StatusCode) {
		return "", fmt.Errorf("%w: openai status %s", ports.ErrTransient, resp.Status)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("openai error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}

	return completion.Choices[0].Message.Content, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ports.ErrTransient, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ports.ErrTransient, err)
	}
	// url.Error wraps dial and reset failures without a stable type; every
	// transport-level failure is worth one more try.
	return fmt.Errorf("%w: %v", ports.ErrTransient, err)
}

func transientStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
