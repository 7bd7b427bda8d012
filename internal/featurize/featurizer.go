package featurize

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/sparse"
)

// DefaultCacheSize is the number of token lists a Featurizer keeps.
const DefaultCacheSize = 4096

// Config configures a Featurizer.
type Config struct {
	Tokenizer Tokenizer // default: Words{}
	CacheSize int       // default: DefaultCacheSize
	Prefix    string    // prepended to every feature name
	Bigrams   bool      // also count adjacent token pairs "a_b"
}

// Featurizer turns text into token count vectors. It is safe for
// concurrent use.
type Featurizer struct {
	tokenizer Tokenizer
	cache     *lru.Cache[string, []string]
	prefix    string
	bigrams   bool
}

// New creates a Featurizer.
func New(cfg Config) (*Featurizer, error) {
	if cfg.Tokenizer == nil {
		cfg.Tokenizer = Words{}
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache: %w", err)
	}
	return &Featurizer{
		tokenizer: cfg.Tokenizer,
		cache:     cache,
		prefix:    cfg.Prefix,
		bigrams:   cfg.Bigrams,
	}, nil
}

// Tokenizer returns the tokenizer.
func (f *Featurizer) Tokenizer() Tokenizer { return f.tokenizer }

func (f *Featurizer) tokens(text string) ([]string, error) {
	if toks, ok := f.cache.Get(text); ok {
		return toks, nil
	}
	toks, err := f.tokenizer.Tokens(text)
	if err != nil {
		return nil, err
	}
	f.cache.Add(text, toks)
	return toks, nil
}

// Features returns the token counts of text.
func (f *Featurizer) Features(text string) (*sparse.Vector, error) {
	toks, err := f.tokens(text)
	if err != nil {
		return nil, err
	}

	n := len(toks)
	if f.bigrams {
		n *= 2
	}
	v := sparse.NewVectorWithCapacity(n)
	for i, tok := range toks {
		v.Add(f.prefix+tok, 1)
		if f.bigrams && i > 0 {
			v.Add(f.prefix+toks[i-1]+"_"+tok, 1)
		}
	}
	return v, nil
}

// ParseLine parses "label[:weight] free text" into an instance whose
// features are the token counts of the text.
func (f *Featurizer) ParseLine(line string, kind instance.Kind) (*instance.Instance, error) {
	label, text, _ := strings.Cut(strings.TrimSpace(line), " ")
	if label == "" {
		return nil, fmt.Errorf("%w: empty line", instance.ErrMalformedLine)
	}
	features, err := f.Features(text)
	if err != nil {
		return nil, err
	}
	return instance.Labeled(features, label, kind)
}

// CacheLen returns the number of cached token lists.
func (f *Featurizer) CacheLen() int {
	return f.cache.Len()
}
