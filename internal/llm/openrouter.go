package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const openRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterClient implements the Client interface using OpenRouter's
// OpenAI-compatible streaming API.
type OpenRouterClient struct {
	apiKey     string
	model      string
	referer    string
	httpClient *http.Client
}

// OpenRouterConfig holds configuration for the OpenRouter client.
type OpenRouterConfig struct {
	APIKey  string
	Model   string // e.g., "openai/gpt-4o-mini"
	Referer string // Optional HTTP-Referer for OpenRouter rankings
}

// NewOpenRouterClient creates a new OpenRouter client.
func NewOpenRouterClient(cfg OpenRouterConfig) *OpenRouterClient {
	model := cfg.Model
	if model == "" {
		model = "openai/gpt-4o-mini"
	}
	return &OpenRouterClient{
		apiKey:     cfg.APIKey,
		model:      model,
		referer:    cfg.Referer,
		httpClient: &http.Client{},
	}
}

// chatRequest represents an OpenAI-compatible chat completion request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents an OpenAI-compatible chat completion response chunk.
type chatResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamCompletion generates a completion for the conversation.
func (c *OpenRouterClient) StreamCompletion(ctx context.Context, messages []Message) (<-chan Delta, error) {
	return c.streamFrom(ctx, openRouterAPIURL, messages)
}

func (c *OpenRouterClient) streamFrom(ctx context.Context, apiURL string, messages []Message) (<-chan Delta, error) {
	chatMsgs := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		chatMsgs = append(chatMsgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	req := chatRequest{
		Model:       c.model,
		Messages:    chatMsgs,
		Stream:      true,
		Temperature: 0.5,
		MaxTokens:   400,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		httpReq.Header.Set("HTTP-Referer", c.referer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("OpenRouter API error: %s - %s", resp.Status, string(respBody))
	}

	ch := make(chan Delta, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()

			// Skip empty lines and non-data lines
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			data := strings.TrimPrefix(line, "data: ")
			if data == "[DONE]" {
				return
			}

			var streamResp chatResponse
			if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
				continue
			}

			if len(streamResp.Choices) > 0 {
				content := streamResp.Choices[0].Delta.Content
				if content != "" {
					select {
					case <-ctx.Done():
						return
					case ch <- Delta{Content: content}:
					}
				}
			}
		}

		// The stream ended without [DONE]: surface the transport error so the
		// consumer can tell a truncated completion from a finished one.
		if err := scanner.Err(); err != nil {
			select {
			case <-ctx.Done():
			case ch <- Delta{Err: fmt.Errorf("stream read error: %w", err)}:
			}
		}
	}()

	return ch, nil
}
