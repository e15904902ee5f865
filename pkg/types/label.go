package types

import (
	"fmt"
	"strings"
)

// Label is the canonical language label assigned to a piece of text
type Label int

const (
	// LabelNone marks text that is neither English nor Roman-transliterated Nepali
	LabelNone Label = iota
	// LabelEnglish marks English text
	LabelEnglish
	// LabelRomanNep marks Nepali written in Latin script
	LabelRomanNep
)

// AllLabels lists the closed label set in display order
var AllLabels = []Label{LabelEnglish, LabelRomanNep, LabelNone}

// String returns the canonical spelling of the label
func (l Label) String() string {
	switch l {
	case LabelEnglish:
		return "English"
	case LabelRomanNep:
		return "RomanNep"
	case LabelNone:
		return "None"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Valid reports whether l is one of the three known labels
func (l Label) Valid() bool {
	return l == LabelEnglish || l == LabelRomanNep || l == LabelNone
}

// aliases covers spellings seen across dataset generations
var aliases = map[string]Label{
	"english":      LabelEnglish,
	"en":           LabelEnglish,
	"eng":          LabelEnglish,
	"romannep":     LabelRomanNep,
	"roman nepali": LabelRomanNep,
	"roman_nepali": LabelRomanNep,
	"roman-nepali": LabelRomanNep,
	"roman_nep":    LabelRomanNep,
	"nepali":       LabelRomanNep,
	"none":         LabelNone,
	"other":        LabelNone,
}

// LabelSet fixes how each label is spelled in the dataset and in the
// selection options shown to the user. Prediction display, manual
// selection and persisted rows all go through the same set.
type LabelSet struct {
	spelling map[Label]string
}

// DefaultLabelSet spells every label canonically
func DefaultLabelSet() LabelSet {
	return NewLabelSet("")
}

// NewLabelSet returns a set where RomanNep is spelled romanNep.
// An empty romanNep keeps the canonical "RomanNep".
func NewLabelSet(romanNep string) LabelSet {
	romanNep = strings.TrimSpace(romanNep)
	if romanNep == "" {
		romanNep = LabelRomanNep.String()
	}
	return LabelSet{spelling: map[Label]string{
		LabelEnglish:  LabelEnglish.String(),
		LabelRomanNep: romanNep,
		LabelNone:     LabelNone.String(),
	}}
}

// Spell returns the configured spelling of l
func (s LabelSet) Spell(l Label) string {
	if s.spelling == nil {
		return l.String()
	}
	if v, ok := s.spelling[l]; ok {
		return v
	}
	return l.String()
}

// Options returns the manual-selection options in display order
func (s LabelSet) Options() []string {
	out := make([]string, 0, len(AllLabels))
	for _, l := range AllLabels {
		out = append(out, s.Spell(l))
	}
	return out
}

// Parse maps a spelling back to its label. The configured spelling,
// the canonical name and the known aliases are accepted, case-insensitively.
func (s LabelSet) Parse(v string) (Label, error) {
	key := strings.ToLower(strings.TrimSpace(v))
	if key == "" {
		return LabelNone, fmt.Errorf("empty label")
	}
	for _, l := range AllLabels {
		if strings.ToLower(s.Spell(l)) == key {
			return l, nil
		}
	}
	if l, ok := aliases[key]; ok {
		return l, nil
	}
	return LabelNone, fmt.Errorf("unknown label %q (expected one of %s)", v, strings.Join(s.Options(), ", "))
}

// Judgement is the user's answer to "is this prediction correct?"
type Judgement int

const (
	JudgementUnanswered Judgement = iota
	JudgementCorrect
	JudgementIncorrect
)

// String returns the value stored in the dataset feedback column
func (j Judgement) String() string {
	switch j {
	case JudgementCorrect:
		return "correct"
	case JudgementIncorrect:
		return "incorrect"
	default:
		return "unanswered"
	}
}
