package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel = "gemini-2.5-flash"
)

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	client  *http.Client
	logger  *zap.Logger
	baseURL string
	model   string
	apiKey  string
	temp    float64
}

func NewGeminiClient(cfg *Config, client *http.Client, logger *zap.Logger) *GeminiClient {
	g := &GeminiClient{
		client:  client,
		logger:  logger,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		temp:    cfg.Temperature,
	}
	if g.baseURL == "" {
		g.baseURL = defaultGeminiURL
	}
	if g.model == "" {
		g.model = defaultGeminiModel
	}
	return g
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig *struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// GenerateText sends the prompt as a single user turn and joins the text
// parts of the first candidate.
func (g *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	req := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if g.temp > 0 {
		req.GenerationConfig = &struct {
			Temperature float64 `json:"temperature"`
		}{Temperature: g.temp}
	}

	payloadBytes, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// The key travels in a header so transport errors, which quote the URL,
	// never carry it.
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Error("Gemini returned non-200 status", zap.Int("status", resp.StatusCode), zap.String("model", g.model))
		return "", fmt.Errorf("gemini returned non-200 status: %d, body: %s", resp.StatusCode, string(body))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(body, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}
	if len(geminiResp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var out strings.Builder
	for _, p := range geminiResp.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}
	return out.String(), nil
}
