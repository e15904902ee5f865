package classifier

import (
	"context"
	"unicode"

	"github.com/abadojack/whatlanggo"
	"go.uber.org/zap"

	"github.com/valentinpelus/langfeed/pkg/types"
)

// romanNepaliMarkers are frequent function words of Nepali written in
// Latin script. whatlanggo has no model for Roman Nepali, so Latin text
// that is not confidently English is checked against this list.
var romanNepaliMarkers = map[string]struct{}{
	"ma": {}, "cha": {}, "chha": {}, "ho": {}, "hoina": {}, "ke": {}, "timro": {},
	"mero": {}, "hamro": {}, "tapai": {}, "tapaai": {}, "janchu": {}, "garnu": {},
	"garchu": {}, "huncha": {}, "hunchha": {}, "thiyo": {}, "bhayo": {}, "kasto": {},
	"naam": {}, "ghar": {}, "ali": {}, "pani": {}, "ra": {}, "lai": {}, "le": {},
	"khana": {}, "khanu": {}, "sanchai": {}, "dherai": {}, "kina": {}, "kaha": {},
	"aaja": {}, "bholi": {}, "hijo": {}, "ani": {}, "yo": {}, "tyo": {}, "chu": {},
}

// whatlangOpts restricts detection to the Latin-script languages most often
// confused with Roman Nepali
var whatlangOpts = whatlanggo.Options{
	Whitelist: map[whatlanggo.Lang]bool{
		whatlanggo.Eng: true,
		whatlanggo.Spa: true,
		whatlanggo.Fra: true,
		whatlanggo.Deu: true,
		whatlanggo.Ita: true,
		whatlanggo.Por: true,
		whatlanggo.Ind: true,
		whatlanggo.Tgl: true,
	},
}

// WhatlangProvider is a dictionary-free heuristic detector: whatlanggo
// trigram detection for English plus a marker-word check for Roman Nepali
type WhatlangProvider struct {
	logger *zap.Logger
}

// NewWhatlangProvider creates the heuristic provider
func NewWhatlangProvider(logger *zap.Logger) *WhatlangProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhatlangProvider{logger: logger}
}

// Name returns the provider name
func (p *WhatlangProvider) Name() string {
	return "whatlanggo heuristic"
}

// Predict classifies text without any external call
func (p *WhatlangProvider) Predict(_ context.Context, text string) (types.Label, error) {
	if isBlank(text) {
		return types.LabelNone, ErrEmptyInput
	}

	if script := whatlanggo.DetectScript(text); script != unicode.Latin {
		return types.LabelNone, nil
	}

	tokens := tokenizeWords(text)
	markers := 0
	for _, tok := range tokens {
		if _, ok := romanNepaliMarkers[tok]; ok {
			markers++
		}
	}

	info := whatlanggo.DetectWithOptions(text, whatlangOpts)
	p.logger.Debug("whatlanggo detection",
		zap.String("lang", info.Lang.String()), zap.Float64("confidence", info.Confidence), zap.Int("markers", markers))

	// Nepali markers in at least a third of the words outweigh a weak
	// English guess
	if markers > 0 && markers*3 >= len(tokens) {
		return types.LabelRomanNep, nil
	}
	if info.Lang == whatlanggo.Eng {
		return types.LabelEnglish, nil
	}
	if markers > 0 {
		return types.LabelRomanNep, nil
	}
	return types.LabelNone, nil
}
