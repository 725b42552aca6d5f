// Package summary generates the on-demand group-chat summary through an
// OpenAI-compatible chat completions API. The default endpoint is a local
// Ollama instance; any compatible hosted endpoint works the same way.
package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://localhost:11434/v1"
	defaultModel   = "llama3"
	defaultTimeout = 60 * time.Second

	// systemPrompt sets the bot's voice: a short, cheeky recap of the group
	// conversation, with an excuse when there is nothing worth recapping.
	systemPrompt = "Eres un bot de chat simpático y sarcástico. Resume la siguiente " +
		"conversación de un grupo de amigos en un párrafo breve, gracioso y con un " +
		"toque de guasa. Usa emojis. Si la conversación está vacía o es aburrida, " +
		"inventa una excusa graciosa."
)

// Config configures the summarizer client.
type Config struct {
	// BaseURL is the API endpoint. Defaults to a local Ollama instance.
	BaseURL string
	// Model is the chat model name. Defaults to "llama3".
	Model string
	// APIKey is the optional bearer token; local Ollama needs none.
	APIKey string
	// Timeout bounds each request. Defaults to 60 s — local models are slow.
	Timeout time.Duration
}

// Client calls the summarization endpoint. Safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a Client with defaults filled in.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Summarise sends the rendered conversation transcript to the model and
// returns its summary. Errors are returned as-is; the dispatcher substitutes
// the user-facing fallback message.
func (c *Client) Summarise(ctx context.Context, transcript string) (string, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "CONVERSACIÓN:\n" + transcript},
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("summary: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("summary: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("summary: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("summary: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("summary: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("summary: API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("summary: unexpected HTTP status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("summary: no choices returned")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
