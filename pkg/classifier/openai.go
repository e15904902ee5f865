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

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider classifies text with OpenAI's chat completions API
type OpenAIProvider struct {
	apiKey   string
	model    string
	template string
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey, model, template string, logger *zap.Logger) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini" // Default model
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		apiKey:   apiKey,
		model:    model,
		template: template,
		baseURL:  openAIBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("OpenAI (%s)", p.model)
}

// OpenAI API structures
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Predict asks OpenAI for the label of text
func (p *OpenAIProvider) Predict(ctx context.Context, text string) (types.Label, error) {
	if isBlank(text) {
		return types.LabelNone, ErrEmptyInput
	}

	reqBody := openAIRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "user", Content: BuildPrompt(p.template, text)},
		},
		Temperature: 0,
		MaxTokens:   10,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to call OpenAI API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.LabelNone, fmt.Errorf("OpenAI API returned status %d: %s", resp.StatusCode, string(body))
	}

	var openAIResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&openAIResp); err != nil {
		return types.LabelNone, fmt.Errorf("failed to decode OpenAI response: %w", err)
	}

	if len(openAIResp.Choices) == 0 {
		return types.LabelNone, fmt.Errorf("OpenAI returned no choices")
	}

	return ParseLabelReply(openAIResp.Choices[0].Message.Content, p.logger), nil
}
