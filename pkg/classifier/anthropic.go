package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

const anthropicBaseURL = "https://api.anthropic.com/v1"

// AnthropicProvider classifies text with Anthropic's Messages API
type AnthropicProvider struct {
	apiKey   string
	model    string
	template string
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
}

// NewAnthropicProvider creates a new Anthropic provider
func NewAnthropicProvider(apiKey, model, template string, logger *zap.Logger) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-haiku-20241022" // Default model
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnthropicProvider{
		apiKey:   apiKey,
		model:    model,
		template: template,
		baseURL:  anthropicBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Name returns the provider name
func (p *AnthropicProvider) Name() string {
	return fmt.Sprintf("Anthropic (%s)", p.model)
}

// Anthropic API structures
type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	ID      string                  `json:"id"`
	Type    string                  `json:"type"`
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

// Predict asks Claude for the label of text
func (p *AnthropicProvider) Predict(ctx context.Context, text string) (types.Label, error) {
	if isBlank(text) {
		return types.LabelNone, ErrEmptyInput
	}

	reqBody := anthropicRequest{
		Model: p.model,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildPrompt(p.template, text)},
		},
		MaxTokens:   10,
		Temperature: 0,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewBuffer(jsonData))
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to call Anthropic API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.LabelNone, fmt.Errorf("Anthropic API returned status %d: %s", resp.StatusCode, string(body))
	}

	var anthropicResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthropicResp); err != nil {
		return types.LabelNone, fmt.Errorf("failed to decode Anthropic response: %w", err)
	}

	if len(anthropicResp.Content) == 0 {
		return types.LabelNone, fmt.Errorf("Anthropic returned no content")
	}

	return ParseLabelReply(anthropicResp.Content[0].Text, p.logger), nil
}
