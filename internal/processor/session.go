package processor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/capture"
	"github.com/valentinpelus/langfeed/pkg/types"
)

// StatsReader summarises the dataset
type StatsReader interface {
	Stats() (types.FeedbackStats, error)
}

// Interaction is one request's view of the interaction surface
type Interaction struct {
	Input     string
	Verdict   types.Judgement
	Selection *types.Label
	Submit    bool
}

func (i Interaction) Text() string { return i.Input }
func (i Interaction) Judgement() types.Judgement { return i.Verdict }
func (i Interaction) SubmitTriggered() bool { return i.Submit }
func (i Interaction) CorrectLabel() (types.Label, bool) {
	if i.Selection == nil {
		return types.LabelNone, false
	}
	return *i.Selection, true
}

// session is one user's in-flight interaction
type session struct {
	mu       sync.Mutex
	workflow *capture.Workflow
	lastSeen time.Time
}

// SessionProcessor routes requests to per-session capture workflows. All
// workflows share the classifier, the dataset store and the publisher.
type SessionProcessor struct {
	deps        capture.Deps
	stats       StatsReader
	idleTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger

	sessions     map[string]*session
	sessionMutex sync.Mutex
}

// NewSessionProcessor creates a processor. Sessions idle for longer than
// idleTimeout are dropped the next time any session is looked up.
func NewSessionProcessor(deps capture.Deps, stats StatsReader, idleTimeout time.Duration, logger *zap.Logger) *SessionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &SessionProcessor{
		deps:        deps,
		stats:       stats,
		idleTimeout: idleTimeout,
		now:         time.Now,
		logger:      logger.Named("processor"),
		sessions:    make(map[string]*session),
	}
}

// Render runs one render of the session's workflow. An empty or unknown
// sessionID starts a new session; the id in use is returned.
func (p *SessionProcessor) Render(ctx context.Context, sessionID string, in Interaction) (string, capture.View) {
	id, s := p.lookup(sessionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.workflow.Render(ctx, in)
	s.lastSeen = p.now()
	return id, view
}

// Labels returns the selectable label options, spelled as configured
func (p *SessionProcessor) Labels() []string {
	return p.deps.Labels.Options()
}

// Stats summarises the dataset
func (p *SessionProcessor) Stats() (types.FeedbackStats, error) {
	return p.stats.Stats()
}

// ActiveSessions returns the number of live sessions
func (p *SessionProcessor) ActiveSessions() int {
	p.sessionMutex.Lock()
	defer p.sessionMutex.Unlock()
	return len(p.sessions)
}

func (p *SessionProcessor) lookup(sessionID string) (string, *session) {
	p.sessionMutex.Lock()
	defer p.sessionMutex.Unlock()

	p.sweepLocked()

	if s, ok := p.sessions[sessionID]; ok && sessionID != "" {
		return sessionID, s
	}

	if sessionID == "" {
		sessionID = uuid.New().String()
	} else {
		p.logger.Debug("Unknown or expired session, starting a new one", zap.String("session_id", sessionID))
	}
	s := &session{workflow: capture.New(p.deps), lastSeen: p.now()}
	p.sessions[sessionID] = s
	return sessionID, s
}

func (p *SessionProcessor) sweepLocked() {
	if p.idleTimeout <= 0 {
		return
	}
	cutoff := p.now().Add(-p.idleTimeout)
	for id, s := range p.sessions {
		if !s.mu.TryLock() {
			continue
		}
		idle := s.lastSeen.Before(cutoff)
		s.mu.Unlock()
		if idle {
			delete(p.sessions, id)
			p.logger.Debug("Dropped idle session", zap.String("session_id", id))
		}
	}
}
