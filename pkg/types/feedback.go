package types

import (
	"errors"
	"strings"
	"time"
)

// FeedbackRecord is one accepted feedback event: the text, what the
// classifier said, and whether the user agreed
type FeedbackRecord struct {
	Text      string    `json:"text"`
	Predicted Label     `json:"predicted"`
	Accepted  bool      `json:"accepted"`
	Corrected *Label    `json:"corrected,omitempty"` // Only set when Accepted is false
	CreatedAt time.Time `json:"created_at"`
}

// EffectiveLabel is the corrected label if present, otherwise the prediction
func (r FeedbackRecord) EffectiveLabel() Label {
	if r.Corrected != nil {
		return *r.Corrected
	}
	return r.Predicted
}

// Validate checks the record is complete enough to be written
func (r FeedbackRecord) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return errors.New("feedback record: text is empty")
	}
	if !r.Predicted.Valid() {
		return errors.New("feedback record: predicted label is invalid")
	}
	if r.Accepted && r.Corrected != nil {
		return errors.New("feedback record: corrected label set on an accepted prediction")
	}
	if !r.Accepted {
		if r.Corrected == nil {
			return errors.New("feedback record: rejected prediction without a corrected label")
		}
		if !r.Corrected.Valid() {
			return errors.New("feedback record: corrected label is invalid")
		}
	}
	return nil
}

// Judgement returns the judgement this record was built from
func (r FeedbackRecord) Judgement() Judgement {
	if r.Accepted {
		return JudgementCorrect
	}
	return JudgementIncorrect
}

// FeedbackStats summarises a dataset
type FeedbackStats struct {
	Total     int            `json:"total"`
	Correct   int            `json:"correct"`
	Incorrect int            `json:"incorrect"`
	ByLabel   map[string]int `json:"by_label"`
}
