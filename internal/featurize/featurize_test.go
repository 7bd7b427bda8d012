package featurize

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/lazylinear/internal/instance"
)

func TestCleanLine(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "Hello World", "hello world"},
		{"digits and punctuation", "it's 42!", "it s    "},
		{"non ascii", "café", "caf "},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanLine(tt.in))
		})
	}
}

func TestWords(t *testing.T) {
	toks, err := Words{}.Tokens("The cat, the HAT.")
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "cat", "the", "hat"}, toks)

	toks, err = Words{MinLength: 4}.Tokens("a tiny cat sleeps")
	require.NoError(t, err)
	assert.Equal(t, []string{"tiny", "sleeps"}, toks)

	assert.Equal(t, "words", Words{}.Name())
}

func TestFeatures(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)

	v, err := f.Features("the cat saw the dog")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"the": 2, "cat": 1, "saw": 1, "dog": 1}, v.ToMap())

	f, err = New(Config{Prefix: "w:", Bigrams: true})
	require.NoError(t, err)
	v, err = f.Features("a b a b")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"w:a": 2, "w:b": 2, "w:a_b": 2, "w:b_a": 1}, v.ToMap())
}

type countingTokenizer struct {
	calls int
	err   error
}

func (c *countingTokenizer) Tokens(text string) ([]string, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return strings.Fields(text), nil
}

func (c *countingTokenizer) Name() string { return "counting" }

func TestFeaturesCache(t *testing.T) {
	tok := &countingTokenizer{}
	f, err := New(Config{Tokenizer: tok, CacheSize: 2})
	require.NoError(t, err)

	for range 3 {
		_, err := f.Features("x y")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tok.calls)

	for _, text := range []string{"a", "b", "c"} {
		_, err := f.Features(text)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, f.CacheLen())

	_, err = f.Features("x y")
	require.NoError(t, err)
	assert.Equal(t, 5, tok.calls, "evicted entries are tokenized again")
}

func TestFeaturesError(t *testing.T) {
	boom := errors.New("boom")
	f, err := New(Config{Tokenizer: &countingTokenizer{err: boom}})
	require.NoError(t, err)

	_, err = f.Features("x")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, f.CacheLen())
}

func TestNewInvalidCacheSize(t *testing.T) {
	_, err := New(Config{CacheSize: -1})
	assert.Error(t, err)
}

func TestParseLine(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)

	inst, err := f.ParseLine("spam:2 Buy NOW, buy cheap!", instance.KindMulticlass)
	require.NoError(t, err)
	assert.Equal(t, "spam", inst.Class)
	assert.Equal(t, 2.0, inst.Weight)
	assert.Equal(t, map[string]float64{"buy": 2, "now": 1, "cheap": 1}, inst.Features.ToMap())

	inst, err = f.ParseLine("1", instance.KindBinary)
	require.NoError(t, err)
	assert.Equal(t, 0, inst.Features.Len())

	_, err = f.ParseLine("   ", instance.KindBinary)
	assert.ErrorIs(t, err, instance.ErrMalformedLine)

	_, err = f.ParseLine("yes great", instance.KindBinary)
	assert.ErrorIs(t, err, instance.ErrMalformedLine)
}

func TestReadText(t *testing.T) {
	f, err := New(Config{})
	require.NoError(t, err)

	data := "# reviews\n1 great movie\n0 dull, dull plot\n"
	var got []*instance.Instance
	err = instance.ReadWith(strings.NewReader(data), instance.KindBinary, f.ParseLine, func(inst *instance.Instance) error {
		got = append(got, inst)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[1].Features.Get("dull"))
}

func TestTikToken(t *testing.T) {
	if testing.Short() {
		t.Skip("tiktoken downloads its vocabulary")
	}

	tok, err := NewTikToken("")
	require.NoError(t, err)
	assert.Equal(t, "tiktoken:cl100k_base", tok.Name())

	text := "Hello, world!"
	ids := tok.Encode(text)
	require.NotEmpty(t, ids)
	assert.Equal(t, text, tok.Decode(ids))

	toks, err := tok.Tokens(text)
	require.NoError(t, err)
	require.Len(t, toks, len(ids))
	for _, s := range toks {
		assert.True(t, strings.HasPrefix(s, "bpe:"), s)
	}

	_, err = NewTikToken("invalid_encoding_xyz")
	assert.Error(t, err)

	byModel, err := NewTikTokenForModel("gpt-4")
	require.NoError(t, err)
	assert.Equal(t, ids, byModel.Encode(text))
}
