package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/valentinpelus/langfeed/pkg/classifier"
	"github.com/valentinpelus/langfeed/pkg/dataset"
	"github.com/valentinpelus/langfeed/pkg/types"
	"github.com/valentinpelus/langfeed/pkg/versioning"
)

type fakeSurface struct {
	text      string
	judgement types.Judgement
	label     *types.Label
	submit    bool
}

func (s *fakeSurface) Text() string { return s.text }
func (s *fakeSurface) Judgement() types.Judgement { return s.judgement }
func (s *fakeSurface) SubmitTriggered() bool { return s.submit }
func (s *fakeSurface) CorrectLabel() (types.Label, bool) {
	if s.label == nil {
		return types.LabelNone, false
	}
	return *s.label, true
}

type fakePredictor struct {
	labels map[string]types.Label
	calls  int
	err    error
}

func (p *fakePredictor) Predict(_ context.Context, text string) (types.Label, error) {
	p.calls++
	if text == "" {
		return types.LabelNone, classifier.ErrEmptyInput
	}
	if p.err != nil {
		return types.LabelNone, p.err
	}
	return p.labels[text], nil
}

type fakePublisher struct {
	calls    int
	path     string
	message  string
	err      error
	observed func()
}

func (p *fakePublisher) Publish(_ context.Context, path, message string) error {
	p.calls++
	p.path, p.message = path, message
	if p.observed != nil {
		p.observed()
	}
	return p.err
}

type fakeMirror struct {
	got []types.FeedbackRecord
	err error
}

func (m *fakeMirror) Name() string { return "fake" }
func (m *fakeMirror) Mirror(_ context.Context, rec types.FeedbackRecord, _ string) error {
	m.got = append(m.got, rec)
	return m.err
}

type fakeLearner struct{ learned map[string]types.Label }

func (l *fakeLearner) Learn(text string, label types.Label) {
	if l.learned == nil {
		l.learned = map[string]types.Label{}
	}
	l.learned[text] = label
}

type fakeNotifier struct{ warnings []string }

func (n *fakeNotifier) Warn(_ context.Context, text string) error {
	n.warnings = append(n.warnings, text)
	return nil
}

type fixture struct {
	wf        *Workflow
	predictor *fakePredictor
	store     *dataset.Store
	publisher *fakePublisher
	logs      *observer.ObservedLogs
}

func newFixture(t *testing.T, schema dataset.Schema, mutate func(*Deps)) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	store, err := dataset.Open(filepath.Join(t.TempDir(), "dataset.csv"), schema, types.DefaultLabelSet(), logger)
	require.NoError(t, err)

	predictor := &fakePredictor{labels: map[string]types.Label{
		"hello there":    types.LabelEnglish,
		"ma ghar janchu": types.LabelNone,
	}}
	publisher := &fakePublisher{}
	deps := Deps{
		Predictor: predictor,
		Recorder:  store,
		Publisher: publisher,
		Labels:    types.DefaultLabelSet(),
		Logger:    logger,
		Now:       func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &fixture{wf: New(deps), predictor: predictor, store: store, publisher: publisher, logs: logs}
}

func labelPtr(l types.Label) *types.Label { return &l }

func TestClassifierCalledOncePerInput(t *testing.T) {
	f := newFixture(t, dataset.SchemaV1, nil)
	s := &fakeSurface{text: "hello there"}
	ctx := context.Background()

	v := f.wf.Render(ctx, s)
	assert.Equal(t, StatePredicted, v.State)
	require.NotNil(t, v.Prediction)
	assert.Equal(t, types.LabelEnglish, *v.Prediction)

	// unrelated widget changes re-render without re-classifying
	for _, j := range []types.Judgement{types.JudgementUnanswered, types.JudgementIncorrect, types.JudgementCorrect} {
		s.judgement = j
		f.wf.Render(ctx, s)
	}
	assert.Equal(t, 1, f.predictor.calls)

	s.text = "ma ghar janchu"
	s.judgement = types.JudgementUnanswered
	v = f.wf.Render(ctx, s)
	assert.Equal(t, 2, f.predictor.calls)
	assert.Equal(t, types.LabelNone, *v.Prediction)
}

func TestEmptyInputSuppressesPrediction(t *testing.T) {
	f := newFixture(t, dataset.SchemaV1, nil)

	for _, text := range []string{"", "   "} {
		v := f.wf.Render(context.Background(), &fakeSurface{text: text, judgement: types.JudgementCorrect, submit: true})
		assert.Equal(t, StateAwaitingInput, v.State)
		assert.Nil(t, v.Prediction)
		assert.NoError(t, v.Err)
	}
	assert.Zero(t, f.predictor.calls)
	_, err := os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestConfirmedPredictionIsSaved(t *testing.T) {
	f := newFixture(t, dataset.SchemaV1, nil)
	s := &fakeSurface{text: "hello there", judgement: types.JudgementCorrect, submit: true}

	v := f.wf.Render(context.Background(), s)
	assert.Equal(t, StateSubmitted, v.State)
	assert.True(t, v.Saved)
	assert.Empty(t, v.Warning)

	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, "text,label\nhello there,English\n", string(data))

	assert.Equal(t, 1, f.publisher.calls)
	assert.Equal(t, f.store.Path(), f.publisher.path)
	assert.Equal(t, "Add feedback: English (confirmed)", f.publisher.message)
}

func TestCorrectionRequiresLabel(t *testing.T) {
	f := newFixture(t, dataset.SchemaV2, nil)
	s := &fakeSurface{text: "ma ghar janchu", judgement: types.JudgementIncorrect, submit: true}
	ctx := context.Background()

	v := f.wf.Render(ctx, s)
	assert.Equal(t, StateAwaitingCorrectLabel, v.State)
	assert.False(t, v.Ready)
	assert.NoError(t, v.Err)
	assert.Empty(t, v.Warning)
	_, err := os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err), "no write without a corrected label")

	s.label = labelPtr(types.LabelRomanNep)
	v = f.wf.Render(ctx, s)
	assert.Equal(t, StateSubmitted, v.State)

	records, err := f.store.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].Accepted)
	assert.Equal(t, types.LabelNone, records[0].Predicted)
	assert.Equal(t, types.LabelRomanNep, records[0].EffectiveLabel())
	assert.Equal(t, "Add feedback: RomanNep (corrected from None)", f.publisher.message)
}

func TestCorrectedRowV1(t *testing.T) {
	f := newFixture(t, dataset.SchemaV1, nil)
	s := &fakeSurface{text: "ma ghar janchu", judgement: types.JudgementIncorrect, label: labelPtr(types.LabelRomanNep), submit: true}

	f.wf.Render(context.Background(), s)
	data, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, "text,label\nma ghar janchu,RomanNep\n", string(data))
}

func TestNoSubmitNoWrite(t *testing.T) {
	f := newFixture(t, dataset.SchemaV1, nil)
	v := f.wf.Render(context.Background(), &fakeSurface{text: "hello there", judgement: types.JudgementCorrect})
	assert.Equal(t, StateAwaitingCorrectness, v.State)
	assert.True(t, v.Ready)
	_, err := os.Stat(f.store.Path())
	assert.True(t, os.IsNotExist(err))
	assert.Zero(t, f.publisher.calls)
}

func TestRepeatedSubmitWritesOnce(t *testing.T) {
	f := newFixture(t, dataset.SchemaV1, nil)
	s := &fakeSurface{text: "hello there", judgement: types.JudgementCorrect, submit: true}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v := f.wf.Render(ctx, s)
		assert.Equal(t, StateSubmitted, v.State)
	}
	records, err := f.store.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, f.publisher.calls)

	// new text starts a new interaction
	s.text = "good morning"
	f.predictor.labels["good morning"] = types.LabelEnglish
	v := f.wf.Render(ctx, s)
	assert.Equal(t, StateSubmitted, v.State)
	records, err = f.store.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestMissingCredentialsStillSaves(t *testing.T) {
	core, publishLogs := observer.New(zapcore.DebugLevel)
	f := newFixture(t, dataset.SchemaV1, func(d *Deps) {
		d.Publisher = versioning.NewPublisher(versioning.StaticCredentials{}, func(versioning.Credentials) (versioning.Client, error) {
			t.Fatal("client must not be created without credentials")
			return nil, nil
		}, zap.New(core))
	})

	v := f.wf.Render(context.Background(), &fakeSurface{text: "hello there", judgement: types.JudgementCorrect, submit: true})
	assert.Equal(t, StateSubmitted, v.State)
	assert.NoError(t, v.Err)
	assert.Empty(t, v.Warning)

	records, err := f.store.ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1)

	skipped := publishLogs.FilterMessage("Skipping publish: credentials not configured").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, zapcore.WarnLevel, skipped[0].Level)
	assert.Contains(t, skipped[0].ContextMap(), "missing")
}

func TestPublishFailureKeepsRow(t *testing.T) {
	notifier := &fakeNotifier{}
	f := newFixture(t, dataset.SchemaV1, func(d *Deps) { d.Notifier = notifier })
	f.publisher.err = &versioning.StepError{Step: versioning.StepPush, Err: errors.New("authentication failed")}

	var before []byte
	f.publisher.observed = func() {
		var err error
		before, err = os.ReadFile(f.store.Path())
		require.NoError(t, err)
	}

	v := f.wf.Render(context.Background(), &fakeSurface{text: "hello there", judgement: types.JudgementCorrect, submit: true})
	assert.Equal(t, StateSubmitted, v.State)
	assert.True(t, v.Saved)
	assert.NotEmpty(t, v.Warning)
	assert.NoError(t, v.Err)
	require.Len(t, notifier.warnings, 1)
	assert.Contains(t, notifier.warnings[0], "authentication failed")

	after, err := os.ReadFile(f.store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Equal(t, "text,label\nhello there,English\n", string(after))
}

func TestWriteFailureSurfaces(t *testing.T) {
	core, _ := observer.New(zapcore.DebugLevel)
	store, err := dataset.Open(filepath.Join(t.TempDir(), "missing", "dataset.csv"), dataset.SchemaV1, types.DefaultLabelSet(), zap.New(core))
	require.NoError(t, err)
	publisher := &fakePublisher{}
	wf := New(Deps{
		Predictor: &fakePredictor{labels: map[string]types.Label{"hello there": types.LabelEnglish}},
		Recorder:  store,
		Publisher: publisher,
		Labels:    types.DefaultLabelSet(),
	})

	s := &fakeSurface{text: "hello there", judgement: types.JudgementCorrect, submit: true}
	v := wf.Render(context.Background(), s)
	var writeErr *dataset.WriteError
	require.ErrorAs(t, v.Err, &writeErr)
	assert.False(t, v.Saved)
	assert.NotEqual(t, StateSubmitted, v.State)
	assert.Zero(t, publisher.calls, "nothing is published after a failed append")

	// the user may retry once the directory exists
	require.NoError(t, os.MkdirAll(filepath.Dir(store.Path()), 0o755))
	v = wf.Render(context.Background(), s)
	assert.NoError(t, v.Err)
	assert.Equal(t, StateSubmitted, v.State)
}

func TestClassifierErrorIsWarning(t *testing.T) {
	f := newFixture(t, dataset.SchemaV1, nil)
	f.predictor.err = errors.New("connection refused")

	s := &fakeSurface{text: "hello there"}
	v := f.wf.Render(context.Background(), s)
	assert.Equal(t, StateAwaitingInput, v.State)
	assert.NotEmpty(t, v.Warning)
	assert.NoError(t, v.Err)

	f.predictor.err = nil
	v = f.wf.Render(context.Background(), s)
	require.NotNil(t, v.Prediction)
	assert.Equal(t, types.LabelEnglish, *v.Prediction)
	assert.Equal(t, 2, f.predictor.calls)
}

func TestLearnerAndMirrorsFed(t *testing.T) {
	learner := &fakeLearner{}
	ok := &fakeMirror{}
	failing := &fakeMirror{err: errors.New("db down")}
	f := newFixture(t, dataset.SchemaV1, func(d *Deps) {
		d.Learner = learner
		d.Mirrors = []Mirror{failing, ok}
	})

	s := &fakeSurface{text: "ma ghar janchu", judgement: types.JudgementIncorrect, label: labelPtr(types.LabelRomanNep), submit: true}
	v := f.wf.Render(context.Background(), s)
	assert.Equal(t, StateSubmitted, v.State)

	assert.Equal(t, types.LabelRomanNep, learner.learned["ma ghar janchu"])
	require.Len(t, ok.got, 1)
	require.Len(t, failing.got, 1)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), ok.got[0].CreatedAt)
	assert.Len(t, f.logs.FilterMessage("Mirror failed").All(), 1)
}

func TestOptionsUseConfiguredSpelling(t *testing.T) {
	f := newFixture(t, dataset.SchemaV1, func(d *Deps) { d.Labels = types.NewLabelSet("Roman Nepali") })
	v := f.wf.Render(context.Background(), &fakeSurface{text: "hello there"})
	assert.Equal(t, []string{"English", "Roman Nepali", "None"}, v.Options)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_correct_label", StateAwaitingCorrectLabel.String())
	assert.Equal(t, "submitted", StateSubmitted.String())
}
