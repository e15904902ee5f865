package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/internal/config"
	"github.com/valentinpelus/langfeed/internal/handler"
	"github.com/valentinpelus/langfeed/internal/logging"
	"github.com/valentinpelus/langfeed/internal/processor"
	"github.com/valentinpelus/langfeed/pkg/capture"
	"github.com/valentinpelus/langfeed/pkg/classifier"
	"github.com/valentinpelus/langfeed/pkg/dataset"
	"github.com/valentinpelus/langfeed/pkg/kubernetes"
	"github.com/valentinpelus/langfeed/pkg/mirror"
	"github.com/valentinpelus/langfeed/pkg/notify"
	"github.com/valentinpelus/langfeed/pkg/types"
	"github.com/valentinpelus/langfeed/pkg/versioning"
)

// App holds all application dependencies
type App struct {
	Config           *config.Config
	Logger           *zap.Logger
	Labels           types.LabelSet
	Store            *dataset.Store
	Classifier       classifier.Provider
	Publisher        *versioning.Publisher
	Notifier         *notify.SlackNotifier
	Mirrors          []capture.Mirror
	SessionProcessor *processor.SessionProcessor
	FeedbackHandler  *handler.FeedbackHandler

	closers []io.Closer
}

// New initializes a new application with all dependencies
func New(ctx context.Context) (*App, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg, logging.New(cfg.LogLevel, cfg.LogFilePath, cfg.IsProduction()))
}

// NewWithConfig wires the application from an already loaded configuration
func NewWithConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	logger = logging.OrNop(logger)
	a := &App{Config: cfg, Logger: logger, Labels: types.NewLabelSet(cfg.LabelRomanNepali)}

	// Dataset
	schema, err := dataset.SchemaByVersion(cfg.DatasetSchema)
	if err != nil {
		return nil, err
	}
	// git runs in GIT_REPO_DIR, so the path it stages must not depend on the cwd
	datasetPath, err := filepath.Abs(cfg.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset path %s: %w", cfg.DatasetPath, err)
	}
	a.Store, err = dataset.Open(datasetPath, schema, a.Labels, logger)
	if err != nil {
		if errors.Is(err, dataset.ErrSchemaMismatch) {
			logger.Error("Dataset header does not match the configured schema; run langfeed-migrate or set DATASET_SCHEMA",
				zap.String("path", datasetPath), zap.String("schema", schema.Version))
		}
		return nil, err
	}

	// Classifier
	if err := a.initClassifier(); err != nil {
		return nil, err
	}

	// Versioning
	if cfg.GitEnabled {
		source, err := a.credentialsSource()
		if err != nil {
			return nil, err
		}
		a.Publisher = versioning.NewPublisher(source, a.clientFactory(), logger)
	} else {
		logger.Info("Dataset publishing disabled (GIT_ENABLED=false)")
	}

	// Mirrors
	if cfg.MirrorDatabaseURL != "" {
		pg, err := mirror.NewPostgresMirror(ctx, cfg.MirrorDatabaseURL, a.Labels, logger)
		if err != nil {
			logger.Warn("Failed to initialize Postgres mirror, continuing without it", zap.Error(err))
		} else {
			a.Mirrors = append(a.Mirrors, pg)
			a.closers = append(a.closers, pg)
		}
	}
	if cfg.MirrorS3Bucket != "" {
		s3m, err := mirror.NewS3Mirror(ctx, cfg.MirrorS3Bucket, cfg.MirrorS3Region, cfg.MirrorS3Prefix, logger)
		if err != nil {
			logger.Warn("Failed to initialize S3 mirror, continuing without it", zap.Error(err))
		} else {
			a.Mirrors = append(a.Mirrors, s3m)
		}
	}

	// Notifications
	a.Notifier = notify.NewSlackNotifier(cfg.SlackWebhookURL, cfg.SlackBotToken, cfg.SlackChannelID, "langfeed", logger)

	deps := capture.Deps{
		Predictor: a.Classifier,
		Recorder:  a.Store,
		Mirrors:   a.Mirrors,
		Labels:    a.Labels,
		Logger:    logger,
	}
	if a.Publisher != nil {
		deps.Publisher = a.Publisher
	}
	if a.Notifier.IsConfigured() {
		deps.Notifier = a.Notifier
	}
	if l, ok := a.Classifier.(classifier.Learner); ok {
		deps.Learner = l
	}

	a.SessionProcessor = processor.NewSessionProcessor(deps, a.Store, cfg.SessionIdleTimeout, logger)
	a.FeedbackHandler = handler.NewFeedbackHandler(a.SessionProcessor, a.Labels, logger)

	if stats, err := a.Store.Stats(); err == nil && stats.Total > 0 {
		logger.Info("Loaded dataset",
			zap.Int("records", stats.Total), zap.Int("correct", stats.Correct), zap.Int("incorrect", stats.Incorrect))
	}
	return a, nil
}

func (a *App) initClassifier() error {
	cfg := a.Config
	factory := classifier.NewFactory(classifier.Config{
		Provider:        cfg.ClassifierProvider,
		Labels:          a.Labels,
		PromptTemplate:  cfg.PromptTemplate,
		SeedPath:        cfg.NBSeedPath,
		ONNXModelPath:   cfg.ONNXModelPath,
		ONNXVocabPath:   cfg.ONNXVocabPath,
		ONNXLabels:      cfg.ONNXLabels,
		OllamaURL:       cfg.OllamaURL,
		OllamaModel:     cfg.OllamaModel,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		OpenAIModel:     cfg.OpenAIModel,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GeminiModel:     cfg.GeminiModel,
		BedrockRegion:   cfg.BedrockRegion,
		BedrockModel:    cfg.BedrockModel,
		Logger:          a.Logger,
	})
	provider, err := factory.CreateProvider()
	if err != nil {
		return fmt.Errorf("failed to create classifier: %w", err)
	}
	if c, ok := provider.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	// The bag-of-words model also learns from everything already collected
	if nb, ok := provider.(*classifier.NaiveBayes); ok {
		records, err := a.Store.ReadAll()
		if err != nil {
			return fmt.Errorf("failed to read dataset for training: %w", err)
		}
		nb.Train(records)
		a.Logger.Info("Trained Naive Bayes from dataset", zap.Int("records", len(records)))
	}

	if cfg.ClassifierCacheTTL > 0 {
		provider = classifier.NewCachedProvider(provider, cfg.ClassifierCacheTTL)
	}
	a.Classifier = provider
	return nil
}

func (a *App) credentialsSource() (versioning.CredentialsSource, error) {
	cfg := a.Config
	if cfg.GitCredentialsSecret == "" {
		return versioning.EnvCredentials{}, nil
	}

	namespace, name, err := kubernetes.ParseSecretRef(cfg.GitCredentialsSecret, "default")
	if err != nil {
		return nil, fmt.Errorf("invalid GIT_CREDENTIALS_SECRET: %w", err)
	}
	clientset, err := kubernetes.GetClientset()
	if err != nil {
		return nil, err
	}
	a.Logger.Info("Reading git credentials from Kubernetes secret", zap.String("secret", namespace+"/"+name))
	return kubernetes.NewSecretCredentials(kubernetes.NewClient(clientset), namespace, name, versioning.Credentials{
		Name:       cfg.GitUserName,
		Email:      cfg.GitUserEmail,
		Token:      cfg.GitToken,
		Repository: cfg.GitRepository,
	}, a.Logger), nil
}

func (a *App) clientFactory() versioning.ClientFactory {
	cfg := a.Config
	return func(creds versioning.Credentials) (versioning.Client, error) {
		switch cfg.GitBackend {
		case "gogit":
			url := ""
			if cfg.GitRemote == "" {
				url = versioning.RemoteURL(cfg.GitRemoteHost, creds.Repository)
			}
			return versioning.NewGoGitClient(cfg.GitRepoDir, cfg.GitRemote, cfg.GitBranch, url, creds)
		default:
			opts := []versioning.CLIOption{
				versioning.WithBranch(cfg.GitBranch),
				versioning.WithHost(cfg.GitRemoteHost),
			}
			if cfg.GitRemote != "" {
				opts = append(opts, versioning.WithRemote(cfg.GitRemote))
			}
			return versioning.NewCLIClient(cfg.GitRepoDir, creds, opts...), nil
		}
	}
}

// LogStartupInfo logs application startup information
func (a *App) LogStartupInfo() {
	cfg := a.Config
	a.Logger.Info("Starting langfeed",
		zap.String("port", cfg.Port),
		zap.String("classifier", a.Classifier.Name()),
		zap.String("dataset", a.Store.Path()),
		zap.String("schema", a.Store.Schema().Version),
		zap.Strings("labels", a.Labels.Options()))

	if cfg.WebhookAuthToken != "" {
		a.Logger.Info("API authentication: enabled (Bearer token required)")
	} else {
		a.Logger.Warn("API authentication: disabled (anyone can submit feedback)")
	}

	if a.Publisher != nil {
		a.Logger.Info("Dataset publishing: enabled", zap.String("backend", cfg.GitBackend), zap.String("repo_dir", cfg.GitRepoDir))
	}
	for _, m := range a.Mirrors {
		a.Logger.Info("Mirror enabled", zap.String("mirror", m.Name()))
	}
	if a.Notifier.IsConfigured() {
		a.Logger.Info("Slack notifications: enabled")
	} else {
		a.Logger.Info("Slack notifications: disabled")
	}
}

// Close releases classifier sessions and database connections
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
