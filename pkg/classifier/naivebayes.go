package classifier

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// NaiveBayes is a multinomial bag-of-words classifier with add-one
// smoothing. It is trained from the feedback dataset at start-up and keeps
// learning from every accepted record.
type NaiveBayes struct {
	mu         sync.RWMutex
	docs       int
	docCount   map[types.Label]int
	wordCount  map[types.Label]map[string]int
	totalWords map[types.Label]int
	vocab      map[string]struct{}
	logger     *zap.Logger
}

// NewNaiveBayes returns an untrained classifier
func NewNaiveBayes(logger *zap.Logger) *NaiveBayes {
	if logger == nil {
		logger = zap.NewNop()
	}
	nb := &NaiveBayes{
		docCount:   make(map[types.Label]int),
		wordCount:  make(map[types.Label]map[string]int),
		totalWords: make(map[types.Label]int),
		vocab:      make(map[string]struct{}),
		logger:     logger,
	}
	for _, l := range types.AllLabels {
		nb.wordCount[l] = make(map[string]int)
	}
	return nb
}

// Name returns the provider name
func (nb *NaiveBayes) Name() string {
	return "Naive Bayes (bag of words)"
}

// Learn adds one labelled example
func (nb *NaiveBayes) Learn(text string, label types.Label) {
	if !label.Valid() {
		return
	}
	tokens := tokenizeWords(text)
	if len(tokens) == 0 {
		return
	}

	nb.mu.Lock()
	defer nb.mu.Unlock()

	nb.docs++
	nb.docCount[label]++
	for _, tok := range tokens {
		nb.wordCount[label][tok]++
		nb.totalWords[label]++
		nb.vocab[tok] = struct{}{}
	}
}

// Train adds every record using its effective label
func (nb *NaiveBayes) Train(records []types.FeedbackRecord) {
	for _, rec := range records {
		nb.Learn(rec.Text, rec.EffectiveLabel())
	}
}

// TrainCSV reads examples from a CSV with "text" and "label" columns and
// returns how many were learned. Rows with unknown labels are skipped.
func (nb *NaiveBayes) TrainCSV(r io.Reader, labels types.LabelSet) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	textCol, labelCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "text":
			textCol = i
		case "label":
			labelCol = i
		}
	}
	if textCol < 0 || labelCol < 0 {
		return 0, fmt.Errorf("header %v has no text and label columns", header)
	}

	learned := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return learned, fmt.Errorf("failed to read row: %w", err)
		}
		if textCol >= len(row) || labelCol >= len(row) {
			continue
		}
		label, err := labels.Parse(row[labelCol])
		if err != nil {
			nb.logger.Debug("Skipping seed row with unknown label", zap.String("label", row[labelCol]))
			continue
		}
		nb.Learn(row[textCol], label)
		learned++
	}
	return learned, nil
}

// Predict returns the most probable label. Words never seen in training are
// ignored; ties go to the label listed first in types.AllLabels. An untrained
// model predicts None, so the first feedback of a fresh dataset can still be
// collected.
func (nb *NaiveBayes) Predict(_ context.Context, text string) (types.Label, error) {
	if isBlank(text) {
		return types.LabelNone, ErrEmptyInput
	}

	nb.mu.RLock()
	defer nb.mu.RUnlock()

	if nb.docs == 0 {
		nb.logger.Debug("Naive Bayes has no training data yet, predicting None")
		return types.LabelNone, nil
	}

	tokens := tokenizeWords(text)
	vocabSize := float64(len(nb.vocab))

	best := types.LabelNone
	bestScore := math.Inf(-1)
	for _, label := range types.AllLabels {
		docs := nb.docCount[label]
		if docs == 0 {
			continue
		}
		score := math.Log(float64(docs) / float64(nb.docs))
		denom := float64(nb.totalWords[label]) + vocabSize
		for _, tok := range tokens {
			if _, known := nb.vocab[tok]; !known {
				continue
			}
			score += math.Log(float64(nb.wordCount[label][tok]+1) / denom)
		}
		if score > bestScore {
			best, bestScore = label, score
		}
	}
	return best, nil
}

// tokenizeWords lowercases text and splits it into runs of letters and
// digits, dropping single-character tokens
func tokenizeWords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
	})
	tokens := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
