// Package capture turns one user interaction into zero or one dataset
// writes: classify the text once, collect the user's judgement, append the
// record, then publish the dataset on a best-effort basis.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/classifier"
	"github.com/valentinpelus/langfeed/pkg/types"
	"github.com/valentinpelus/langfeed/pkg/versioning"
)

// State is where an interaction stands
type State int

const (
	StateAwaitingInput State = iota
	StatePredicted
	StateAwaitingCorrectness
	StateAwaitingCorrectLabel
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateAwaitingInput:
		return "awaiting_input"
	case StatePredicted:
		return "predicted"
	case StateAwaitingCorrectness:
		return "awaiting_correctness"
	case StateAwaitingCorrectLabel:
		return "awaiting_correct_label"
	case StateSubmitted:
		return "submitted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Surface is what the workflow reads from the interaction surface on each render
type Surface interface {
	Text() string
	Judgement() types.Judgement
	CorrectLabel() (types.Label, bool)
	SubmitTriggered() bool
}

// Predictor is the classifier boundary
type Predictor interface {
	Predict(ctx context.Context, text string) (types.Label, error)
}

// Recorder appends records to the dataset
type Recorder interface {
	Append(rec types.FeedbackRecord) error
	Path() string
}

// Publisher pushes the dataset to the remote after an append
type Publisher interface {
	Publish(ctx context.Context, path, message string) error
}

// Mirror receives every appended record. Failures are logged only.
type Mirror interface {
	Name() string
	Mirror(ctx context.Context, rec types.FeedbackRecord, datasetPath string) error
}

// Notifier is told about publish failures
type Notifier interface {
	Warn(ctx context.Context, text string) error
}

// Deps are shared by every workflow of a process
type Deps struct {
	Predictor Predictor
	Recorder  Recorder
	Publisher Publisher          // optional
	Learner   classifier.Learner // optional, fed the effective label of each append
	Mirrors   []Mirror
	Notifier  Notifier // optional
	Labels    types.LabelSet
	Logger    *zap.Logger
	Now       func() time.Time
}

// View is what the surface should display after a render
type View struct {
	State      State
	Prediction *types.Label
	Options    []string
	Ready      bool // submit would be accepted
	Saved      bool
	Record     *types.FeedbackRecord
	Warning    string
	Err        error
}

// Workflow holds the state of one interaction. It is not safe for
// concurrent use; callers serialise renders of the same workflow.
type Workflow struct {
	deps Deps

	lastInput      string
	lastPrediction types.Label
	hasPrediction  bool
	submitted      *types.FeedbackRecord
}

// New creates a workflow in StateAwaitingInput
func New(deps Deps) *Workflow {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Logger = deps.Logger.Named("capture")
	return &Workflow{deps: deps}
}

// Render reads the surface and advances the interaction. The classifier is
// called at most once per distinct input; changing the text resets the
// interaction.
func (w *Workflow) Render(ctx context.Context, s Surface) View {
	text := s.Text()
	if text != w.lastInput {
		w.reset(text)
	}

	view := View{State: StateAwaitingInput, Options: w.deps.Labels.Options()}
	if strings.TrimSpace(text) == "" {
		return view
	}

	fresh := false
	if !w.hasPrediction {
		label, err := w.deps.Predictor.Predict(ctx, text)
		if errors.Is(err, classifier.ErrEmptyInput) {
			return view
		}
		if err != nil {
			w.deps.Logger.Warn("Classifier failed", zap.Error(err))
			view.Warning = "classifier unavailable, try again"
			return view
		}
		w.lastPrediction, w.hasPrediction, fresh = label, true, true
	}

	prediction := w.lastPrediction
	view.Prediction = &prediction

	if w.submitted != nil {
		view.State = StateSubmitted
		view.Saved = true
		view.Record = w.submitted
		return view
	}

	rec := types.FeedbackRecord{Text: text, Predicted: prediction}
	switch s.Judgement() {
	case types.JudgementCorrect:
		rec.Accepted = true
		view.State = StateAwaitingCorrectness
	case types.JudgementIncorrect:
		corrected, ok := s.CorrectLabel()
		if !ok || !corrected.Valid() {
			view.State = StateAwaitingCorrectLabel
			return view
		}
		rec.Corrected = &corrected
		view.State = StateAwaitingCorrectLabel
	default:
		if fresh {
			view.State = StatePredicted
		} else {
			view.State = StateAwaitingCorrectness
		}
		return view
	}

	view.Ready = true
	if !s.SubmitTriggered() {
		return view
	}
	return w.submit(ctx, rec, view)
}

func (w *Workflow) submit(ctx context.Context, rec types.FeedbackRecord, view View) View {
	rec.CreatedAt = w.deps.Now().UTC()
	log := w.deps.Logger.With(zap.String("label", w.deps.Labels.Spell(rec.EffectiveLabel())), zap.Bool("accepted", rec.Accepted))

	if err := w.deps.Recorder.Append(rec); err != nil {
		log.Error("Could not save feedback", zap.Error(err))
		view.Err = err
		return view
	}
	w.submitted = &rec
	log.Info("Feedback saved", zap.String("path", w.deps.Recorder.Path()))

	if w.deps.Learner != nil {
		w.deps.Learner.Learn(rec.Text, rec.EffectiveLabel())
	}
	for _, m := range w.deps.Mirrors {
		if err := m.Mirror(ctx, rec, w.deps.Recorder.Path()); err != nil {
			log.Warn("Mirror failed", zap.String("mirror", m.Name()), zap.Error(err))
		}
	}

	view.State = StateSubmitted
	view.Ready = false
	view.Saved = true
	view.Record = w.submitted
	view.Warning = w.publish(ctx, rec)
	return view
}

// publish returns a non-blocking warning for the user, or "" when the
// dataset was pushed or publishing is not configured
func (w *Workflow) publish(ctx context.Context, rec types.FeedbackRecord) string {
	if w.deps.Publisher == nil {
		return ""
	}
	msg := CommitMessage(rec, w.deps.Labels)
	err := w.deps.Publisher.Publish(ctx, w.deps.Recorder.Path(), msg)
	if err == nil || errors.Is(err, versioning.ErrCredentialsMissing) {
		return ""
	}

	warning := "feedback saved locally but could not be published"
	if w.deps.Notifier != nil {
		if nerr := w.deps.Notifier.Warn(ctx, fmt.Sprintf("Dataset publish failed for %q: %v", rec.Text, err)); nerr != nil {
			w.deps.Logger.Warn("Failed to send publish warning", zap.Error(nerr))
		}
	}
	return warning
}

func (w *Workflow) reset(text string) {
	w.lastInput = text
	w.hasPrediction = false
	w.lastPrediction = types.LabelNone
	w.submitted = nil
}

// CommitMessage describes one appended record
func CommitMessage(rec types.FeedbackRecord, labels types.LabelSet) string {
	if rec.Accepted {
		return fmt.Sprintf("Add feedback: %s (confirmed)", labels.Spell(rec.EffectiveLabel()))
	}
	return fmt.Sprintf("Add feedback: %s (corrected from %s)", labels.Spell(rec.EffectiveLabel()), labels.Spell(rec.Predicted))
}
