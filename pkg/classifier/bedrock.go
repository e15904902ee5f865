package classifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// bedrockInvoker is the part of the Bedrock runtime client we use
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider classifies text with a Claude model hosted on AWS Bedrock
type BedrockProvider struct {
	client   bedrockInvoker
	model    string
	region   string
	template string
	logger   *zap.Logger
}

// NewBedrockProvider creates a new AWS Bedrock provider. Credentials come
// from the default AWS chain (environment, shared config, IAM role).
func NewBedrockProvider(region, model, template string, logger *zap.Logger) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1" // Default region
	}
	if model == "" {
		model = "anthropic.claude-3-5-haiku-20241022-v1:0" // Default model
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:   bedrockruntime.NewFromConfig(cfg),
		model:    model,
		region:   region,
		template: template,
		logger:   logger,
	}, nil
}

// Name returns the provider name
func (p *BedrockProvider) Name() string {
	return fmt.Sprintf("AWS Bedrock (%s)", p.model)
}

// Bedrock request/response structures (Claude's format on Bedrock)
type bedrockClaudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockClaudeRequest struct {
	Messages         []bedrockClaudeMessage `json:"messages"`
	MaxTokens        int                    `json:"max_tokens"`
	Temperature      float64                `json:"temperature"`
	AnthropicVersion string                 `json:"anthropic_version"`
}

type bedrockClaudeResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Predict asks Bedrock for the label of text
func (p *BedrockProvider) Predict(ctx context.Context, text string) (types.Label, error) {
	if isBlank(text) {
		return types.LabelNone, ErrEmptyInput
	}

	reqBody := bedrockClaudeRequest{
		Messages: []bedrockClaudeMessage{
			{Role: "user", Content: BuildPrompt(p.template, text)},
		},
		MaxTokens:        10,
		Temperature:      0.0,
		AnthropicVersion: "bedrock-2023-05-31",
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(p.model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        jsonData,
	})
	if err != nil {
		return types.LabelNone, fmt.Errorf("failed to call Bedrock API: %w", err)
	}

	var bedrockResp bedrockClaudeResponse
	if err := json.Unmarshal(resp.Body, &bedrockResp); err != nil {
		return types.LabelNone, fmt.Errorf("failed to decode Bedrock response: %w", err)
	}

	if len(bedrockResp.Content) == 0 {
		return types.LabelNone, fmt.Errorf("Bedrock returned no content")
	}

	return ParseLabelReply(bedrockResp.Content[0].Text, p.logger), nil
}
