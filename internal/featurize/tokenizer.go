// Package featurize turns free text into sparse feature vectors.
//
// A Tokenizer splits text into token strings; a Featurizer counts the
// tokens (and optionally adjacent token pairs) into a sparse.Vector,
// caching the token lists of recently seen texts.
package featurize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer splits text into tokens.
type Tokenizer interface {
	// Tokens returns the tokens of text in order.
	Tokens(text string) ([]string, error)

	// Name identifies the tokenizer in model metadata.
	Name() string
}

// CleanLine lowercases text and replaces every character that is not an
// ASCII letter with a space.
func CleanLine(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(r + ('a' - 'A'))
		default:
			sb.WriteByte(' ')
		}
	}
	return sb.String()
}

// Words tokenizes CleanLine(text) on whitespace.
type Words struct {
	// MinLength drops shorter words (default: 0, keep all).
	MinLength int
}

// Tokens returns the cleaned words of text.
func (w Words) Tokens(text string) ([]string, error) {
	fields := strings.Fields(CleanLine(text))
	if w.MinLength <= 1 {
		return fields, nil
	}
	out := fields[:0]
	for _, f := range fields {
		if len(f) >= w.MinLength {
			out = append(out, f)
		}
	}
	return out, nil
}

// Name returns "words".
func (Words) Name() string { return "words" }

const (
	// encodingCL100kBase is the encoding name for GPT-4 and GPT-3.5-turbo.
	encodingCL100kBase = "cl100k_base"
)

// TikToken tokenizes text with a byte-pair encoding from tiktoken-go.
// Tokens are named "bpe:<id>" so they cannot collide with word features.
//
// Supported encodings:
//   - cl100k_base: GPT-4, GPT-3.5-turbo, text-embedding-ada-002
//   - p50k_base: GPT-3, Codex
//   - r50k_base: GPT-3, davinci-002, babbage-002
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

// NewTikToken creates a tokenizer with the named encoding; an empty name
// selects cl100k_base.
func NewTikToken(encodingName string) (*TikToken, error) {
	if encodingName == "" {
		encodingName = encodingCL100kBase
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// NewTikTokenForModel creates a tokenizer with the encoding of a model,
// e.g. "gpt-4".
func NewTikTokenForModel(modelName string) (*TikToken, error) {
	encoding, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken for model %q: %w", modelName, err)
	}
	return &TikToken{encoding: encoding, name: modelName}, nil
}

// Encode returns the token IDs of text.
func (t *TikToken) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

// Decode converts token IDs back to text.
func (t *TikToken) Decode(ids []int) string {
	return t.encoding.Decode(ids)
}

// Tokens returns the token IDs of text as feature names.
func (t *TikToken) Tokens(text string) ([]string, error) {
	ids := t.Encode(text)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = "bpe:" + strconv.Itoa(id)
	}
	return out, nil
}

// Name returns "tiktoken:<encoding>".
func (t *TikToken) Name() string {
	return "tiktoken:" + t.name
}
