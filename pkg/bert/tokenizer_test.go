package bert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVocabTokens = []string{
	"[PAD]", "[UNK]", "[CLS]", "[SEP]",
	"hello", "world", "!", ",", "un", "##aff", "##able",
	"cafe", "free", "prize", "click", "now", "中", "文",
}

func testVocab(t *testing.T) Vocab {
	t.Helper()
	v, err := ReadVocab(strings.NewReader(strings.Join(testVocabTokens, "\n") + "\n"))
	require.NoError(t, err)
	return v
}

func TestReadVocab(t *testing.T) {
	v := testVocab(t)
	assert.Equal(t, 0, v[TokenPad])
	assert.Equal(t, 2, v[TokenCLS])
	assert.Equal(t, 4, v["hello"])
	assert.Len(t, v, len(testVocabTokens))

	_, err := ReadVocab(strings.NewReader("hello\nworld\n"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing special token")
}

func TestTokenizer_Tokenize(t *testing.T) {
	tok, err := NewTokenizer(testVocab(t), true, 16)
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"punctuation is split", "Hello, World!", []string{"hello", ",", "world", "!"}},
		{"wordpiece continuation", "unaffable", []string{"un", "##aff", "##able"}},
		{"accents are stripped", "Café", []string{"cafe"}},
		{"unknown word", "xyz", []string{"[UNK]"}},
		{"control whitespace", "hello\tworld\r\n", []string{"hello", "world"}},
		{"cjk characters are separated", "中文", []string{"中", "文"}},
		{"empty", "   ", nil},
		{"over-long word", strings.Repeat("a", maxRunesPerWord+1), []string{"[UNK]"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tok.Tokenize(tc.in))
		})
	}
}

func TestTokenizer_CasedKeepsUppercase(t *testing.T) {
	tok, err := NewTokenizer(testVocab(t), false, 16)
	require.NoError(t, err)
	assert.Equal(t, []string{"[UNK]"}, tok.Tokenize("Hello"))
}

func TestTokenizer_EncodePadsToMaxLength(t *testing.T) {
	tok, err := NewTokenizer(testVocab(t), true, 8)
	require.NoError(t, err)

	enc, err := tok.Encode("hello world")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 5, 3, 0, 0, 0, 0}, enc.InputIDs)
	assert.Equal(t, []int{1, 1, 1, 1, 0, 0, 0, 0}, enc.AttentionMask)
	assert.Equal(t, make([]int, 8), enc.TokenTypeIDs)
	assert.Equal(t, 4, enc.Length())
}

func TestTokenizer_EncodeTruncates(t *testing.T) {
	tok, err := NewTokenizer(testVocab(t), true, 4)
	require.NoError(t, err)

	enc, err := tok.Encode("hello world hello world")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 5, 3}, enc.InputIDs)
	assert.Equal(t, []int{1, 1, 1, 1}, enc.AttentionMask)
}

func TestNewTokenizer_RejectsTinyMaxLength(t *testing.T) {
	_, err := NewTokenizer(testVocab(t), true, 1)
	assert.ErrorIs(t, err, ErrInvalidMaxLength)
}
