package classifier

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxSeqLen bounds the tokens fed to the transformer, [CLS] and [SEP] included
const maxSeqLen = 64

// wordpieceVocab is a BERT vocab.txt: one token per line, id = line number
type wordpieceVocab struct {
	ids   map[string]int64
	unkID int64
	clsID int64
	sepID int64
	padID int64
}

func loadWordpieceVocab(path string) (*wordpieceVocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: %w", err)
	}
	defer f.Close()
	return readWordpieceVocab(f)
}

func readWordpieceVocab(r io.Reader) (*wordpieceVocab, error) {
	ids := make(map[string]int64, 32000)
	scanner := bufio.NewScanner(r)
	var n int64
	for scanner.Scan() {
		ids[scanner.Text()] = n
		n++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("vocab: read error: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("vocab: empty vocabulary")
	}

	v := &wordpieceVocab{ids: ids}
	for name, dest := range map[string]*int64{"[UNK]": &v.unkID, "[CLS]": &v.clsID, "[SEP]": &v.sepID, "[PAD]": &v.padID} {
		id, ok := ids[name]
		if !ok {
			return nil, fmt.Errorf("vocab: missing special token %s", name)
		}
		*dest = id
	}
	return v, nil
}

func (v *wordpieceVocab) lookup(tok string) int64 {
	if id, ok := v.ids[tok]; ok {
		return id
	}
	return v.unkID
}

// encoded is one tokenized input, unpadded
type encoded struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
}

// encode lowercases, strips accents, splits on whitespace and punctuation,
// applies greedy longest-match WordPiece and wraps the ids in [CLS] ... [SEP]
func (v *wordpieceVocab) encode(text string) encoded {
	ids := []int64{v.clsID}
	for _, word := range basicSplit(text) {
		for _, piece := range v.wordpiece(word) {
			if len(ids) == maxSeqLen-1 {
				break
			}
			ids = append(ids, piece)
		}
	}
	ids = append(ids, v.sepID)

	mask := make([]int64, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return encoded{inputIDs: ids, attentionMask: mask, tokenTypeIDs: make([]int64, len(ids))}
}

func (v *wordpieceVocab) wordpiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > 100 {
		return []int64{v.unkID}
	}

	var pieces []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		matched := int64(-1)
		for ; end > start; end-- {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if id, ok := v.ids[sub]; ok {
				matched = id
				break
			}
		}
		if matched < 0 {
			return []int64{v.unkID}
		}
		pieces = append(pieces, matched)
		start = end
	}
	return pieces
}

// basicSplit is BERT's uncased basic tokenizer minus CJK handling, which
// never occurs in the English / Roman Nepali inputs this model sees
func basicSplit(text string) []string {
	var cleaned strings.Builder
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case r == 0 || r == unicode.ReplacementChar || unicode.Is(unicode.Mn, r):
			continue
		case unicode.IsSpace(r):
			cleaned.WriteRune(' ')
		case unicode.IsControl(r):
			continue
		default:
			cleaned.WriteRune(r)
		}
	}

	var out []string
	for _, word := range strings.Fields(cleaned.String()) {
		var cur strings.Builder
		for _, r := range word {
			if isBertPunct(r) {
				if cur.Len() > 0 {
					out = append(out, cur.String())
					cur.Reset()
				}
				out = append(out, string(r))
				continue
			}
			cur.WriteRune(r)
		}
		if cur.Len() > 0 {
			out = append(out, cur.String())
		}
	}
	return out
}

func isBertPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}
