package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider classifies text with Google's Gemini models
type GeminiProvider struct {
	apiKey   string
	model    string
	template string
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(apiKey, model, template string, logger *zap.Logger) *GeminiProvider {
	if model == "" {
		model = "gemini-1.5-flash" // Default model
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiProvider{
		apiKey:   apiKey,
		model:    model,
		template: template,
		baseURL:  geminiBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return fmt.Sprintf("Google Gemini (%s)", p.model)
}

// Gemini API structures
type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Predict asks Gemini for the label of text
func (p *GeminiProvider) Predict(ctx context.Context, text string) (types.Label, error) {
	if isBlank(text) {
		return types.LabelNone, ErrEmptyInput
	}

	reqBody := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: BuildPrompt(p.template, text)}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     0,
			MaxOutputTokens: 10,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.baseURL, p.model, url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to call Gemini API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.LabelNone, fmt.Errorf("Gemini API returned status %d: %s", resp.StatusCode, string(body))
	}

	var geminiResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return types.LabelNone, fmt.Errorf("failed to decode Gemini response: %w", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return types.LabelNone, fmt.Errorf("Gemini returned no content")
	}

	return ParseLabelReply(geminiResp.Candidates[0].Content.Parts[0].Text, p.logger), nil
}
