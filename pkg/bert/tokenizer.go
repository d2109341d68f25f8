package bert

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	TokenPad = "[PAD]"
	TokenUnk = "[UNK]"
	TokenCLS = "[CLS]"
	TokenSEP = "[SEP]"

	// DefaultMaxLength is the sequence length every input is padded or truncated to.
	DefaultMaxLength = 512

	maxRunesPerWord = 100
)

var ErrInvalidMaxLength = errors.New("max length must leave room for [CLS] and [SEP]")

// Encoding is the fixed-length model input produced by the tokenizer.
type Encoding struct {
	InputIDs      []int
	AttentionMask []int
	TokenTypeIDs  []int
}

// Length returns the number of attended (non-padding) positions.
func (e Encoding) Length() int {
	n := 0
	for _, m := range e.AttentionMask {
		if m != 0 {
			n++
		}
	}
	return n
}

// Vocab maps WordPiece tokens to ids.
type Vocab map[string]int

// LoadVocab reads a vocab.txt file, one token per line, id = line number.
func LoadVocab(path string) (Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocab %s: %w", path, err)
	}
	defer f.Close()
	return ReadVocab(f)
}

// ReadVocab parses vocab.txt content.
func ReadVocab(r io.Reader) (Vocab, error) {
	vocab := make(Vocab)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	id := 0
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r\n")
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = id
		}
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocab: %w", err)
	}
	for _, special := range []string{TokenPad, TokenUnk, TokenCLS, TokenSEP} {
		if _, ok := vocab[special]; !ok {
			return nil, fmt.Errorf("vocab is missing special token %s", special)
		}
	}
	return vocab, nil
}

// Tokenizer is an uncased-capable BERT WordPiece tokenizer. It is safe for concurrent use.
type Tokenizer struct {
	vocab     Vocab
	lowerCase bool
	maxLength int
}

// NewTokenizer builds a tokenizer that pads and truncates to maxLength.
func NewTokenizer(vocab Vocab, lowerCase bool, maxLength int) (*Tokenizer, error) {
	if maxLength < 2 {
		return nil, ErrInvalidMaxLength
	}
	return &Tokenizer{
		vocab:     vocab,
		lowerCase: lowerCase,
		maxLength: maxLength,
	}, nil
}

// MaxLength is the fixed sequence length of every Encoding.
func (t *Tokenizer) MaxLength() int { return t.maxLength }

// Encode converts text into [CLS] tokens [SEP] followed by [PAD] up to MaxLength.
func (t *Tokenizer) Encode(text string) (Encoding, error) {
	pieces := t.Tokenize(text)
	if len(pieces) > t.maxLength-2 {
		pieces = pieces[:t.maxLength-2]
	}

	enc := Encoding{
		InputIDs:      make([]int, t.maxLength),
		AttentionMask: make([]int, t.maxLength),
		TokenTypeIDs:  make([]int, t.maxLength),
	}
	pad := t.vocab[TokenPad]
	for i := range enc.InputIDs {
		enc.InputIDs[i] = pad
	}

	enc.InputIDs[0] = t.vocab[TokenCLS]
	enc.AttentionMask[0] = 1
	for i, p := range pieces {
		enc.InputIDs[i+1] = t.vocab[p]
		enc.AttentionMask[i+1] = 1
	}
	enc.InputIDs[len(pieces)+1] = t.vocab[TokenSEP]
	enc.AttentionMask[len(pieces)+1] = 1
	return enc, nil
}

// Tokenize splits text into WordPiece tokens without special tokens or padding.
func (t *Tokenizer) Tokenize(text string) []string {
	var out []string
	for _, word := range t.basicTokens(text) {
		out = append(out, t.wordPiece(word)...)
	}
	return out
}

func (t *Tokenizer) basicTokens(text string) []string {
	text = padCJK(cleanText(text))
	var tokens []string
	for _, word := range strings.Fields(text) {
		if t.lowerCase {
			word = stripAccents(strings.ToLower(word))
		}
		tokens = append(tokens, splitPunctuation(word)...)
	}
	return tokens
}

func (t *Tokenizer) wordPiece(word string) []string {
	chars := []rune(word)
	if len(chars) > maxRunesPerWord {
		return []string{TokenUnk}
	}
	var pieces []string
	start := 0
	for start < len(chars) {
		end := len(chars)
		found := ""
		for start < end {
			sub := string(chars[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab[sub]; ok {
				found = sub
				break
			}
			end--
		}
		if found == "" {
			return []string{TokenUnk}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}

func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
			continue
		case isWhitespace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func padCJK(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if isCJK(r) {
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stripAccents(s string) string {
	out, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), s)
	if err != nil {
		return s
	}
	return out
}

func splitPunctuation(word string) []string {
	var out []string
	var cur []rune
	for _, r := range word {
		if isPunctuation(r) {
			if len(cur) > 0 {
				out = append(out, string(cur))
				cur = cur[:0]
			}
			out = append(out, string(r))
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		out = append(out, string(cur))
	}
	return out
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf, unicode.Co, unicode.Cs)
}

// ASCII symbols such as "^", "$" and "`" count as punctuation even though
// Unicode does not classify them as P*.
func isPunctuation(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
