package dataset

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// ErrSchemaMismatch is returned when an existing dataset file's header does
// not match the schema the store was opened with
var ErrSchemaMismatch = errors.New("dataset schema mismatch")

// Schema describes one generation of the dataset file layout
type Schema struct {
	Version string
	Header  []string
}

var (
	// SchemaV1 is the original two-column layout
	SchemaV1 = Schema{Version: "v1", Header: []string{"text", "label"}}
	// SchemaV2 keeps the prediction and the user's judgement next to the label
	SchemaV2 = Schema{Version: "v2", Header: []string{"text", "label", "predicted_language", "feedback", "correct_language"}}
)

// SchemaByVersion looks up a schema by its version string
func SchemaByVersion(version string) (Schema, error) {
	switch strings.ToLower(strings.TrimSpace(version)) {
	case "v1", "1":
		return SchemaV1, nil
	case "v2", "2", "":
		return SchemaV2, nil
	default:
		return Schema{}, fmt.Errorf("unknown dataset schema %q (supported: v1, v2)", version)
	}
}

// DetectSchema returns the schema whose header equals header
func DetectSchema(header []string) (Schema, error) {
	for _, s := range []Schema{SchemaV1, SchemaV2} {
		if s.matches(header) {
			return s, nil
		}
	}
	return Schema{}, fmt.Errorf("%w: unrecognised header %v", ErrSchemaMismatch, header)
}

func (s Schema) matches(header []string) bool {
	if len(header) != len(s.Header) {
		return false
	}
	for i := range header {
		// Tolerate a UTF-8 BOM and stray whitespace written by spreadsheet tools
		h := strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
		if h != s.Header[i] {
			return false
		}
	}
	return true
}

// encode turns a record into a row for this schema
func (s Schema) encode(rec types.FeedbackRecord, labels types.LabelSet) []string {
	row := []string{rec.Text, labels.Spell(rec.EffectiveLabel())}
	if s.Version == SchemaV1.Version {
		return row
	}
	corrected := ""
	if rec.Corrected != nil {
		corrected = labels.Spell(*rec.Corrected)
	}
	return append(row, labels.Spell(rec.Predicted), rec.Judgement().String(), corrected)
}

// decode turns a row back into a record. v1 rows carry no judgement and
// are read as accepted predictions of their label.
func (s Schema) decode(row []string, labels types.LabelSet) (types.FeedbackRecord, error) {
	if len(row) != len(s.Header) {
		return types.FeedbackRecord{}, fmt.Errorf("expected %d fields, got %d", len(s.Header), len(row))
	}
	label, err := labels.Parse(row[1])
	if err != nil {
		return types.FeedbackRecord{}, err
	}
	if s.Version == SchemaV1.Version {
		return types.FeedbackRecord{Text: row[0], Predicted: label, Accepted: true}, nil
	}

	predicted, err := labels.Parse(row[2])
	if err != nil {
		return types.FeedbackRecord{}, err
	}
	rec := types.FeedbackRecord{Text: row[0], Predicted: predicted}
	switch strings.ToLower(strings.TrimSpace(row[3])) {
	case types.JudgementCorrect.String():
		rec.Accepted = true
	case types.JudgementIncorrect.String():
		corrected := label
		if row[4] != "" {
			if corrected, err = labels.Parse(row[4]); err != nil {
				return types.FeedbackRecord{}, err
			}
		}
		rec.Corrected = &corrected
	default:
		return types.FeedbackRecord{}, fmt.Errorf("unknown feedback value %q", row[3])
	}
	return rec, nil
}

// Columns returns a copy of the header
func (s Schema) Columns() []string {
	return slices.Clone(s.Header)
}
