package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	genai "google.golang.org/genai"
)

// LanguageModel turns a prompt into raw text. Implementations must honor
// ctx cancellation.
type LanguageModel interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

var errEmptyResponse = errors.New("empty model response")

// ==========================
// Gemini (google.golang.org/genai)
// ==========================

type GeminiModel struct {
	cli   *genai.Client
	model string
}

// NewGeminiModel builds a client for the Gemini API. An empty apiKey lets the
// SDK read GOOGLE_API_KEY / GEMINI_API_KEY from the environment.
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiModel{cli: cli, model: model}, nil
}

func (g *GeminiModel) Name() string { return "gemini:" + g.model }

func (g *GeminiModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0),
		},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errEmptyResponse
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// ==========================
// HTTP GenAI gateway
// ==========================

// GatewayModel calls an internal GenAI gateway exposing POST /api/ai/generate.
type GatewayModel struct {
	baseURL    string
	apiKey     string
	maxRetries int
	client     *http.Client
}

func NewGatewayModel(baseURL, apiKey string, maxRetries int, client *http.Client) *GatewayModel {
	if client == nil {
		client = &http.Client{}
	}
	return &GatewayModel{
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxRetries: maxRetries,
		client:     client,
	}
}

func (m *GatewayModel) Name() string { return "gateway:" + m.baseURL }

type gatewayRequest struct {
	Prompt         string  `json:"prompt"`
	ResponseFormat string  `json:"response_format"`
	Temperature    float64 `json:"temperature"`
}

type gatewayResponse struct {
	Text string `json:"text"`
}

// Generate retries non-2xx responses with exponential backoff. Context
// expiry stops retrying immediately.
func (m *GatewayModel) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(gatewayRequest{Prompt: prompt, ResponseFormat: "json", Temperature: 0})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, retry, err := m.do(ctx, body)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return "", lastErr
}

func (m *GatewayModel) do(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/ai/generate", bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		// 4xx other than 429 will not get better on retry.
		retry := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", retry, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out gatewayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode gateway response: %w", err)
	}
	if out.Text == "" {
		return "", false, errEmptyResponse
	}
	return out.Text, false, nil
}
