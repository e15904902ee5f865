package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/internal/processor"
	"github.com/valentinpelus/langfeed/pkg/capture"
	"github.com/valentinpelus/langfeed/pkg/dataset"
	"github.com/valentinpelus/langfeed/pkg/types"
)

const maxBodyBytes = 64 << 10

// Renderer is the session processor as seen by the handlers
type Renderer interface {
	Render(ctx context.Context, sessionID string, in processor.Interaction) (string, capture.View)
	Labels() []string
	Stats() (types.FeedbackStats, error)
}

// PredictRequest asks for the label of text
type PredictRequest struct {
	SessionID string `json:"session_id" validate:"omitempty,uuid"`
	Text      string `json:"text" validate:"max=5000"`
}

// FeedbackRequest carries the user's judgement of a prediction
type FeedbackRequest struct {
	SessionID    string `json:"session_id" validate:"required,uuid"`
	Text         string `json:"text" validate:"required,max=5000"`
	Correct      *bool  `json:"correct"`
	CorrectLabel string `json:"correct_label"`
	Submit       bool   `json:"submit"`
}

// ViewResponse is a capture.View as JSON
type ViewResponse struct {
	SessionID  string   `json:"session_id"`
	State      string   `json:"state"`
	Prediction string   `json:"prediction,omitempty"`
	Options    []string `json:"options"`
	Ready      bool     `json:"ready"`
	Saved      bool     `json:"saved"`
	Label      string   `json:"label,omitempty"`
	Warning    string   `json:"warning,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// FeedbackHandler serves the prediction and feedback API
type FeedbackHandler struct {
	renderer Renderer
	labels   types.LabelSet
	validate *validator.Validate
	logger   *zap.Logger
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(renderer Renderer, labels types.LabelSet, logger *zap.Logger) *FeedbackHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackHandler{
		renderer: renderer,
		labels:   labels,
		validate: validator.New(),
		logger:   logger.Named("handler"),
	}
}

// HandlePredict classifies text for a session, creating the session if needed
func (h *FeedbackHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PredictRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, view := h.renderer.Render(r.Context(), req.SessionID, processor.Interaction{Input: req.Text})
	h.writeView(w, id, view)
}

// HandleFeedback records the user's judgement and, on submit, saves it
func (h *FeedbackHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}

	var req FeedbackRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := processor.Interaction{Input: req.Text, Submit: req.Submit}
	if req.Correct != nil {
		if *req.Correct {
			in.Verdict = types.JudgementCorrect
		} else {
			in.Verdict = types.JudgementIncorrect
		}
	}
	if strings.TrimSpace(req.CorrectLabel) != "" {
		label, err := h.labels.Parse(req.CorrectLabel)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		in.Selection = &label
	}

	id, view := h.renderer.Render(r.Context(), req.SessionID, in)
	h.writeView(w, id, view)
}

// HandleLabels lists the selectable labels
func (h *FeedbackHandler) HandleLabels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"labels": h.renderer.Labels()})
}

// HandleStats summarises the dataset
func (h *FeedbackHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.renderer.Stats()
	if err != nil {
		h.logger.Error("Failed to read dataset stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not read dataset"})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *FeedbackHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		h.logger.Debug("Failed to parse request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func (h *FeedbackHandler) writeView(w http.ResponseWriter, sessionID string, view capture.View) {
	resp := ViewResponse{
		SessionID: sessionID,
		State:     view.State.String(),
		Options:   view.Options,
		Ready:     view.Ready,
		Saved:     view.Saved,
		Warning:   view.Warning,
	}
	if view.Prediction != nil {
		resp.Prediction = h.labels.Spell(*view.Prediction)
	}
	if view.Record != nil {
		resp.Label = h.labels.Spell(view.Record.EffectiveLabel())
	}

	status := http.StatusOK
	if view.Err != nil {
		var writeErr *dataset.WriteError
		if errors.As(view.Err, &writeErr) {
			status = http.StatusUnprocessableEntity
			resp.Error = "could not save feedback"
		} else {
			status = http.StatusInternalServerError
			resp.Error = "internal error"
		}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// HandleHealth handles health check requests
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
