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

// OllamaProvider classifies text with a self-hosted Ollama model
type OllamaProvider struct {
	baseURL  string
	model    string
	template string
	client   *http.Client
	logger   *zap.Logger
}

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaProvider creates a new Ollama provider
func NewOllamaProvider(baseURL, model, template string, logger *zap.Logger) *OllamaProvider {
	if model == "" {
		model = "llama3" // Default model
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OllamaProvider{
		baseURL:  baseURL,
		model:    model,
		template: template,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

// Name returns the provider name
func (p *OllamaProvider) Name() string {
	return fmt.Sprintf("Ollama (%s)", p.model)
}

// Predict asks Ollama for the label of text
// Reference: https://github.com/ollama/ollama/blob/main/docs/api.md
func (p *OllamaProvider) Predict(ctx context.Context, text string) (types.Label, error) {
	if isBlank(text) {
		return types.LabelNone, ErrEmptyInput
	}

	reqBody := ollamaRequest{
		Model:   p.model,
		Prompt:  BuildPrompt(p.template, text),
		Stream:  false,
		Options: map[string]any{"temperature": 0},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to call Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return types.LabelNone, fmt.Errorf("Ollama API returned status %d: %s", resp.StatusCode, string(body))
	}

	var ollamaResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return types.LabelNone, fmt.Errorf("failed to decode Ollama response: %w", err)
	}

	label := ParseLabelReply(ollamaResp.Response, p.logger)
	p.logger.Debug("Ollama classified text", zap.String("label", label.String()))
	return label, nil
}
