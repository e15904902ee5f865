package classifier

import (
	"strings"

	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// DefaultPromptTemplate is the prompt shared by the LLM providers.
// {TEXT} is replaced by the text to classify.
const DefaultPromptTemplate = `Identify the language of the text below. Pick exactly one label.

Labels:
1. English - the text is written in English
2. RomanNep - the text is Nepali written in the Latin alphabet (e.g. "ma ghar janchu", "timro naam ke ho")
3. None - anything else (other languages, Devanagari script, gibberish, numbers only)

Rules:
- Mixed text: pick the language of the majority of words
- Response: ONE word only, no punctuation

Text: {TEXT}

Label:`

// BuildPrompt fills template (or the default) with text
func BuildPrompt(template, text string) string {
	if template == "" {
		template = DefaultPromptTemplate
	}
	return strings.ReplaceAll(template, "{TEXT}", text)
}

// ParseLabelReply maps a model's free-text reply to a label. Replies that
// name no label become LabelNone.
func ParseLabelReply(reply string, logger *zap.Logger) types.Label {
	label := strings.TrimSpace(reply)

	// Extract first line if multi-line response
	if idx := strings.Index(label, "\n"); idx != -1 {
		label = strings.TrimSpace(label[:idx])
	}

	// Drop a "Label:" prefix or trailing explanation
	if idx := strings.Index(label, ":"); idx != -1 {
		before, after := strings.TrimSpace(label[:idx]), strings.TrimSpace(label[idx+1:])
		if strings.EqualFold(before, "label") {
			label = after
		} else {
			label = before
		}
	}
	label = strings.Trim(label, " .,;!\"'`*")

	if l, err := types.DefaultLabelSet().Parse(label); err == nil {
		return l
	}

	lower := strings.ToLower(label)
	switch {
	case strings.Contains(lower, "romannep"), strings.Contains(lower, "roman"), strings.Contains(lower, "nepali"):
		return types.LabelRomanNep
	case strings.Contains(lower, "english"):
		return types.LabelEnglish
	}

	if logger != nil {
		logger.Warn("Model returned an unknown label, using None", zap.String("reply", reply))
	}
	return types.LabelNone
}
