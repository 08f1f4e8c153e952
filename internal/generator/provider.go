package generator

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

// Provider is the capability a question backend must offer: given a model and
// a prompt pair, return the raw completion text or fail. Implementations must
// respect ctx and bound their own network calls.
type Provider interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error)
}

// ChatClient talks to an OpenAI-compatible chat-completions endpoint. Groq and
// OpenAI both expose this shape, so one client covers every configured
// provider; only base URL and key differ.
type ChatClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	temperature float64
	maxTokens   int
}

func NewChatClient(baseURL, apiKey string, timeout time.Duration, temperature float64, maxTokens int) *ChatClient {
	return &ChatClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		apiKey:      apiKey,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat chatFormat    `json:"response_format"`
	Messages       []chatMessage `json:"messages"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) Complete(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:          model,
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		ResponseFormat: chatFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("chat completion status %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
