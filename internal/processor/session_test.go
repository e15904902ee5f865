package processor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valentinpelus/langfeed/pkg/capture"
	"github.com/valentinpelus/langfeed/pkg/classifier"
	"github.com/valentinpelus/langfeed/pkg/dataset"
	"github.com/valentinpelus/langfeed/pkg/types"
)

type countingPredictor struct{ calls int }

func (p *countingPredictor) Predict(_ context.Context, text string) (types.Label, error) {
	p.calls++
	if text == "" {
		return types.LabelNone, classifier.ErrEmptyInput
	}
	return types.LabelEnglish, nil
}

func newTestProcessor(t *testing.T, idle time.Duration) (*SessionProcessor, *countingPredictor, *dataset.Store) {
	t.Helper()
	store, err := dataset.Open(filepath.Join(t.TempDir(), "feedback.csv"), dataset.SchemaV2, types.DefaultLabelSet(), nil)
	require.NoError(t, err)
	predictor := &countingPredictor{}
	p := NewSessionProcessor(capture.Deps{
		Predictor: predictor,
		Recorder:  store,
		Labels:    types.DefaultLabelSet(),
	}, store, idle, nil)
	return p, predictor, store
}

func TestSessionsAreIndependent(t *testing.T) {
	p, predictor, _ := newTestProcessor(t, time.Hour)
	ctx := context.Background()

	a, view := p.Render(ctx, "", Interaction{Input: "hello there"})
	require.NotEmpty(t, a)
	assert.Equal(t, capture.StatePredicted, view.State)

	b, _ := p.Render(ctx, "", Interaction{Input: "hello there"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, predictor.calls)

	again, view := p.Render(ctx, a, Interaction{Input: "hello there", Verdict: types.JudgementCorrect})
	assert.Equal(t, a, again)
	assert.Equal(t, capture.StateAwaitingCorrectness, view.State)
	assert.Equal(t, 2, predictor.calls)
	assert.Equal(t, 2, p.ActiveSessions())
}

func TestSubmitThroughProcessor(t *testing.T) {
	p, _, store := newTestProcessor(t, time.Hour)
	ctx := context.Background()
	roman := types.LabelRomanNep

	id, _ := p.Render(ctx, "", Interaction{Input: "ma ghar janchu"})
	_, view := p.Render(ctx, id, Interaction{Input: "ma ghar janchu", Verdict: types.JudgementIncorrect, Submit: true})
	assert.Equal(t, capture.StateAwaitingCorrectLabel, view.State)

	_, view = p.Render(ctx, id, Interaction{Input: "ma ghar janchu", Verdict: types.JudgementIncorrect, Selection: &roman, Submit: true})
	assert.Equal(t, capture.StateSubmitted, view.State)

	stats, err := p.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Incorrect)

	records, err := store.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.LabelRomanNep, records[0].EffectiveLabel())
}

func TestIdleSessionsAreSwept(t *testing.T) {
	p, predictor, _ := newTestProcessor(t, time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	id, _ := p.Render(ctx, "", Interaction{Input: "hello there"})
	now = now.Add(2 * time.Minute)

	// looking up another session drops the idle one
	p.Render(ctx, "", Interaction{Input: "good morning"})
	assert.Equal(t, 1, p.ActiveSessions())

	// the expired id starts over and classifies again
	same, _ := p.Render(ctx, id, Interaction{Input: "hello there"})
	assert.Equal(t, id, same)
	assert.Equal(t, 3, predictor.calls)
}

func TestLabelsUseConfiguredSpelling(t *testing.T) {
	p := NewSessionProcessor(capture.Deps{Labels: types.NewLabelSet("Roman Nepali")}, nil, 0, nil)
	assert.Equal(t, []string{"English", "Roman Nepali", "None"}, p.Labels())
}
