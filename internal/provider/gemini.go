package provider

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

// geminiProvider implements Provider for the Google Generative Language
// REST API.
type geminiProvider struct {
	baseURL          string
	apiKey           string
	model            string
	client           *http.Client
	maxResponseBytes int64
}

// NewGemini creates a new Gemini provider.
func NewGemini(baseURL, apiKey, model string, timeout time.Duration) Provider {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &geminiProvider{
		baseURL:          baseURL,
		apiKey:           apiKey,
		model:            model,
		maxResponseBytes: 4 * 1024 * 1024,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent        `json:"contents"`
	SystemInstruction *geminiContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenerationConfig `json:"generationConfig"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (p *geminiProvider) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return p.generate(ctx, systemPrompt, userPrompt, MaxOutputTokens)
}

// Ping asks for a trivial completion; anything non-empty means the
// backend and credential are usable.
func (p *geminiProvider) Ping(ctx context.Context) error {
	text, err := p.generate(ctx, "", "Reply with just the word OK", 10)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("gemini ping returned empty response")
	}
	return nil
}

func (p *geminiProvider) generate(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: userPrompt}}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     Temperature,
			MaxOutputTokens: maxTokens,
		},
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: systemPrompt}}}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model),
		bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("create gemini request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := p.readBounded(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errBody geminiErrorResponse
		if err := json.Unmarshal(respBody, &errBody); err != nil {
			return "", fmt.Errorf("gemini error status %d and failed to decode error body: %w", resp.StatusCode, err)
		}
		return "", fmt.Errorf("gemini error: %s (status=%s)", errBody.Error.Message, errBody.Error.Status)
	}

	var genResp geminiGenerateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		return "", fmt.Errorf("gemini response had no candidates")
	}

	var out strings.Builder
	for _, part := range genResp.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}

func (p *geminiProvider) readBounded(r io.Reader) ([]byte, error) {
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
