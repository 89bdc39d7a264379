package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// groqProvider implements Provider for the Groq OpenAI-compatible
// Chat Completions API.
type groqProvider struct {
	baseURL          string
	apiKey           string
	model            string
	client           *http.Client
	maxResponseBytes int64
}

// NewGroq creates a new Groq provider.
func NewGroq(baseURL, apiKey, model string, timeout time.Duration) Provider {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &groqProvider{
		baseURL:          baseURL,
		apiKey:           apiKey,
		model:            model,
		maxResponseBytes: 4 * 1024 * 1024,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type groqChatRequest struct {
	Model       string            `json:"model"`
	Messages    []groqChatMessage `json:"messages"`
	Temperature float64           `json:"temperature"`
	MaxTokens   int               `json:"max_tokens"`
}

type groqChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqChatResponse struct {
	Choices []groqChatChoice `json:"choices"`
}

type groqChatChoice struct {
	Message groqChatMessage `json:"message"`
}

type groqErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (p *groqProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := groqChatRequest{
		Model: p.model,
		Messages: []groqChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: Temperature,
		MaxTokens:   MaxOutputTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal groq request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/chat/completions", p.baseURL),
		bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("create groq request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call groq: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := p.readBounded(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read groq response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errBody groqErrorResponse
		if err := json.Unmarshal(respBody, &errBody); err != nil {
			return "", fmt.Errorf("groq error status %d and failed to decode error body: %w", resp.StatusCode, err)
		}
		return "", fmt.Errorf("groq error: %s (type=%s)", errBody.Error.Message, errBody.Error.Type)
	}

	var chatResp groqChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("decode groq response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("groq response had no choices")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// Ping lists models, the cheapest authenticated call Groq offers.
func (p *groqProvider) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/models", p.baseURL), nil)
	if err != nil {
		return fmt.Errorf("create groq ping request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ping groq: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, p.maxResponseBytes))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("groq ping returned status %d", resp.StatusCode)
	}
	return nil
}

func (p *groqProvider) readBounded(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, p.maxResponseBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > p.maxResponseBytes {
		return nil, fmt.Errorf("response exceeded limit (%d bytes)", p.maxResponseBytes)
	}
	return body, nil
}
