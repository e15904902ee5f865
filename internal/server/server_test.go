package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valentinpelus/langfeed/internal/handler"
	"github.com/valentinpelus/langfeed/internal/processor"
	"github.com/valentinpelus/langfeed/pkg/capture"
	"github.com/valentinpelus/langfeed/pkg/dataset"
	"github.com/valentinpelus/langfeed/pkg/types"
)

type fixedPredictor types.Label

func (p fixedPredictor) Predict(context.Context, string) (types.Label, error) {
	return types.Label(p), nil
}

func newTestServer(t *testing.T, token string) http.Handler {
	t.Helper()
	store, err := dataset.Open(filepath.Join(t.TempDir(), "feedback.csv"), dataset.SchemaV2, types.DefaultLabelSet(), nil)
	require.NoError(t, err)
	proc := processor.NewSessionProcessor(capture.Deps{
		Predictor: fixedPredictor(types.LabelEnglish),
		Recorder:  store,
		Labels:    types.DefaultLabelSet(),
	}, store, time.Hour, nil)
	return New("0", token, handler.NewFeedbackHandler(proc, types.DefaultLabelSet(), nil), nil).Routes()
}

func TestRoutes(t *testing.T) {
	h := newTestServer(t, "tok")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewBufferString(`{"text":"hello"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", bytes.NewBufferString(`{"text":"hello"}`))
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"prediction":"English"`)

	req = httptest.NewRequest(http.MethodGet, "/api/labels", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/stats", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStartStopsOnCancel(t *testing.T) {
	store, err := dataset.Open(filepath.Join(t.TempDir(), "feedback.csv"), dataset.SchemaV1, types.DefaultLabelSet(), nil)
	require.NoError(t, err)
	proc := processor.NewSessionProcessor(capture.Deps{Predictor: fixedPredictor(types.LabelNone), Recorder: store}, store, 0, nil)
	srv := New("0", "", handler.NewFeedbackHandler(proc, types.DefaultLabelSet(), nil), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
