package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port             string `validate:"required,numeric"`
	WebhookAuthToken string
	Environment      string
	LogLevel         string `validate:"omitempty,oneof=debug info warn warning error"`
	LogFilePath      string

	// Classifier
	ClassifierProvider string `validate:"omitempty,oneof=naivebayes nb whatlang onnx transformer ollama openai anthropic claude gemini google bedrock aws"`
	ClassifierCacheTTL time.Duration
	PromptTemplate     string
	NBSeedPath         string
	ONNXModelPath      string
	ONNXVocabPath      string
	ONNXLabels         []string
	OllamaURL          string
	OllamaModel        string
	OpenAIAPIKey       string
	OpenAIModel        string
	AnthropicAPIKey    string
	AnthropicModel     string
	GeminiAPIKey       string
	GeminiModel        string
	BedrockRegion      string
	BedrockModel       string

	// Dataset
	DatasetPath      string `validate:"required"`
	DatasetSchema    string `validate:"oneof=v1 v2"`
	LabelRomanNepali string

	// Versioning
	GitEnabled           bool
	GitBackend           string `validate:"oneof=cli gogit"`
	GitRepoDir           string
	GitRemote            string
	GitBranch            string
	GitUserName          string
	GitUserEmail         string
	GitToken             string
	GitRepository        string
	GitRemoteHost        string
	GitCredentialsSecret string // namespace/name of a Secret holding git credentials

	// Mirrors
	MirrorDatabaseURL string
	MirrorS3Bucket    string
	MirrorS3Region    string
	MirrorS3Prefix    string

	// Notifications
	SlackWebhookURL string
	SlackBotToken   string
	SlackChannelID  string

	// Sessions
	SessionIdleTimeout time.Duration
}

// LoadConfig loads configuration from an optional .env file and the
// environment. Variables already set in the environment win over .env.
func LoadConfig() *Config {
	_ = godotenv.Load()

	datasetPath := getEnv("DATASET_PATH", "data/feedback.csv")
	return &Config{
		Port:             getEnv("PORT", "8080"),
		WebhookAuthToken: getEnv("WEBHOOK_AUTH_TOKEN", ""),
		Environment:      getEnv("GO_ENV", "development"),
		LogLevel:         strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFilePath:      getEnv("LOG_FILE_PATH", ""),

		ClassifierProvider: getEnv("CLASSIFIER_PROVIDER", "naivebayes"),
		ClassifierCacheTTL: getEnvDuration("CLASSIFIER_CACHE_TTL", 10*time.Minute),
		PromptTemplate:     getEnv("CLASSIFIER_PROMPT", ""),
		NBSeedPath:         getEnv("NB_SEED_PATH", ""),
		ONNXModelPath:      getEnv("ONNX_MODEL_PATH", ""),
		ONNXVocabPath:      getEnv("ONNX_VOCAB_PATH", ""),
		ONNXLabels:         getEnvList("ONNX_LABELS", []string{"English", "RomanNep", "None"}),
		OllamaURL:          getEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:        getEnv("OLLAMA_MODEL", "llama3"),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:     getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		BedrockRegion:      getEnv("BEDROCK_REGION", "us-east-1"),
		BedrockModel:       getEnv("BEDROCK_MODEL", "anthropic.claude-3-5-haiku-20241022-v1:0"),

		DatasetPath:      datasetPath,
		DatasetSchema:    strings.ToLower(getEnv("DATASET_SCHEMA", "v2")),
		LabelRomanNepali: getEnv("LABEL_ROMAN_NEPALI", "RomanNep"),

		GitEnabled:           getEnvBool("GIT_ENABLED", true),
		GitBackend:           strings.ToLower(getEnv("GIT_BACKEND", "cli")),
		GitRepoDir:           getEnv("GIT_REPO_DIR", "."),
		GitRemote:            getEnv("GIT_REMOTE", ""),
		GitBranch:            getEnv("GIT_BRANCH", "main"),
		GitUserName:          getEnv("GIT_USER_NAME", ""),
		GitUserEmail:         getEnv("GIT_USER_EMAIL", ""),
		GitToken:             getEnv("GIT_TOKEN", ""),
		GitRepository:        getEnv("GIT_REPOSITORY", ""),
		GitRemoteHost:        getEnv("GIT_REMOTE_HOST", "github.com"),
		GitCredentialsSecret: getEnv("GIT_CREDENTIALS_SECRET", ""),

		MirrorDatabaseURL: getEnv("MIRROR_DATABASE_URL", ""),
		MirrorS3Bucket:    getEnv("MIRROR_S3_BUCKET", ""),
		MirrorS3Region:    getEnv("MIRROR_S3_REGION", ""),
		MirrorS3Prefix:    getEnv("MIRROR_S3_PREFIX", "langfeed"),

		SlackWebhookURL: getEnv("SLACK_WEBHOOK_URL", ""),
		SlackBotToken:   getEnv("SLACK_BOT_TOKEN", ""),
		SlackChannelID:  getEnv("SLACK_CHANNEL_ID", ""),

		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
	}
}

// Validate checks enumerated and required values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsProduction reports whether GO_ENV is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an int environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool gets a bool environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or a plain number of seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs := getEnvInt(key, -1); secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
