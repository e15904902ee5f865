package classifier

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// ErrEmptyInput is returned for blank text. Callers treat it as "nothing to
// classify yet", never as a failure.
var ErrEmptyInput = errors.New("classifier: empty input")

// Provider predicts a language label for a piece of text. Implementations
// must be deterministic for a fixed model snapshot.
type Provider interface {
	// Predict returns the label for text, or ErrEmptyInput for blank text
	Predict(ctx context.Context, text string) (types.Label, error)

	// Name returns the provider name (for logging)
	Name() string
}

// Learner is implemented by providers that can be updated with accepted
// feedback while running
type Learner interface {
	Learn(text string, label types.Label)
}

// Config holds configuration for every provider kind
type Config struct {
	Provider string // "naivebayes", "whatlang", "onnx", "ollama", "openai", "anthropic", "gemini", "bedrock"

	// Spelling used when parsing replies and model label lists
	Labels types.LabelSet

	// Custom prompt for the LLM providers; {TEXT} is replaced by the input
	PromptTemplate string

	// Naive Bayes: optional CSV of text,label examples loaded at start-up
	SeedPath string

	// ONNX sequence classifier
	ONNXModelPath string
	ONNXVocabPath string
	ONNXLabels    []string // Model output index order

	// Ollama-specific
	OllamaURL   string
	OllamaModel string

	// OpenAI-specific
	OpenAIAPIKey string
	OpenAIModel  string

	// Anthropic-specific
	AnthropicAPIKey string
	AnthropicModel  string

	// Gemini-specific
	GeminiAPIKey string
	GeminiModel  string

	// AWS Bedrock-specific
	BedrockRegion string
	BedrockModel  string

	Logger *zap.Logger
}

// isBlank reports whether text has nothing to classify
func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
