package versioning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ClientFactory builds a Client for the credentials resolved at publish time
type ClientFactory func(creds Credentials) (Client, error)

// Publisher stages, commits and pushes the dataset after each accepted
// append. It makes at most one attempt per call and never retries.
type Publisher struct {
	source    CredentialsSource
	newClient ClientFactory
	logger    *zap.Logger
}

// NewPublisher creates a publisher
func NewPublisher(source CredentialsSource, newClient ClientFactory, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		source:    source,
		newClient: newClient,
		logger:    logger.Named("versioning"),
	}
}

// Publish runs stage, commit and push for path in that order. Incomplete
// credentials skip the whole publish and return ErrCredentialsMissing. The
// first failing step aborts the rest and is returned as a *StepError.
func (p *Publisher) Publish(ctx context.Context, path, message string) error {
	creds, err := p.source.Credentials(ctx)
	if err != nil {
		p.logger.Warn("Skipping publish: could not resolve credentials", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrCredentialsMissing, err)
	}
	if !creds.Complete() {
		p.logger.Warn("Skipping publish: credentials not configured",
			zap.String("path", path), zap.Strings("missing", creds.Missing()))
		return ErrCredentialsMissing
	}

	client, err := p.newClient(creds)
	if err != nil {
		p.logger.Warn("Skipping publish: could not create version-control client", zap.Error(err))
		return &StepError{Step: StepStage, Command: "open", Err: err}
	}

	start := time.Now()
	steps := []struct {
		step Step
		run  func() error
	}{
		{StepStage, func() error { return client.Stage(ctx, path) }},
		{StepCommit, func() error { return client.Commit(ctx, message) }},
		{StepPush, func() error { return client.Push(ctx) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			var stepErr *StepError
			if !errors.As(err, &stepErr) {
				stepErr = &StepError{Step: s.step, Err: err}
			}
			p.logger.Warn("Publish step failed",
				zap.String("step", string(stepErr.Step)),
				zap.String("command", stepErr.Command),
				zap.String("output", stepErr.Output),
				zap.Error(stepErr.Err))
			return stepErr
		}
		p.logger.Debug("Publish step done", zap.String("step", string(s.step)))
	}

	p.logger.Info("Published dataset",
		zap.String("path", path), zap.String("message", message), zap.Duration("took", time.Since(start)))
	return nil
}
