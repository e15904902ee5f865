package classifier

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// Factory creates classifier providers based on configuration
type Factory struct {
	config Config
	logger *zap.Logger
}

// NewFactory creates a new provider factory
func NewFactory(config Config) *Factory {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{config: config, logger: logger.Named("classifier")}
}

// CreateProvider creates the configured provider
func (f *Factory) CreateProvider() (Provider, error) {
	switch f.config.Provider {
	case "naivebayes", "nb", "":
		nb := NewNaiveBayes(f.logger)
		if f.config.SeedPath != "" {
			file, err := os.Open(f.config.SeedPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open seed dataset: %w", err)
			}
			defer file.Close()
			n, err := nb.TrainCSV(file, f.config.Labels)
			if err != nil {
				return nil, fmt.Errorf("failed to train from seed dataset: %w", err)
			}
			f.logger.Info("Trained Naive Bayes from seed dataset",
				zap.String("path", f.config.SeedPath), zap.Int("examples", n))
		}
		return nb, nil

	case "whatlang":
		return NewWhatlangProvider(f.logger), nil

	case "onnx", "transformer":
		if f.config.ONNXModelPath == "" || f.config.ONNXVocabPath == "" {
			return nil, fmt.Errorf("onnx model and vocab paths must be configured")
		}
		return NewONNXProvider(f.config.ONNXModelPath, f.config.ONNXVocabPath, f.config.ONNXLabels, f.config.Labels, f.logger)

	case "ollama":
		if f.config.OllamaURL == "" {
			return nil, fmt.Errorf("ollama URL not configured")
		}
		f.logger.Info("Using Ollama provider", zap.String("model", f.config.OllamaModel), zap.String("url", f.config.OllamaURL))
		return NewOllamaProvider(f.config.OllamaURL, f.config.OllamaModel, f.config.PromptTemplate, f.logger), nil

	case "openai":
		if f.config.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openAI API key not configured")
		}
		f.logger.Info("Using OpenAI provider", zap.String("model", f.config.OpenAIModel))
		return NewOpenAIProvider(f.config.OpenAIAPIKey, f.config.OpenAIModel, f.config.PromptTemplate, f.logger), nil

	case "anthropic", "claude":
		if f.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		f.logger.Info("Using Anthropic provider", zap.String("model", f.config.AnthropicModel))
		return NewAnthropicProvider(f.config.AnthropicAPIKey, f.config.AnthropicModel, f.config.PromptTemplate, f.logger), nil

	case "gemini", "google":
		if f.config.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini API key not configured")
		}
		f.logger.Info("Using Google Gemini provider", zap.String("model", f.config.GeminiModel))
		return NewGeminiProvider(f.config.GeminiAPIKey, f.config.GeminiModel, f.config.PromptTemplate, f.logger), nil

	case "bedrock", "aws":
		f.logger.Info("Using AWS Bedrock provider", zap.String("model", f.config.BedrockModel), zap.String("region", f.config.BedrockRegion))
		return NewBedrockProvider(f.config.BedrockRegion, f.config.BedrockModel, f.config.PromptTemplate, f.logger)

	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: naivebayes, whatlang, onnx, ollama, openai, anthropic, gemini, bedrock)", f.config.Provider)
	}
}
