package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// Completer turns a prompt into raw model text. Parsing that text is the
// caller's job.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// OllamaClient completes prompts with a local Ollama model.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates a client for the Ollama server at baseURL.
func NewOllamaClient(baseURL, model string, timeout time.Duration) (*OllamaClient, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	return &OllamaClient{
		client: api.NewClient(parsedURL, &http.Client{Timeout: timeout}),
		model:  model,
	}, nil
}

// Complete runs a single non-streaming generation in JSON mode.
func (c *OllamaClient) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	req := &api.GenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: new(bool), // false
		Format: json.RawMessage(`"json"`),
		Options: map[string]interface{}{
			"temperature": temperature,
		},
	}

	var fullResponse strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		fullResponse.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	return fullResponse.String(), nil
}

// truncateText truncates text to maxLen runes
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
