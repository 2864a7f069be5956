package normalize

import (
	"strings"

	"github.com/blevesearch/bleve/v2/analysis"
	htmlchar "github.com/blevesearch/bleve/v2/analysis/char/html"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/m-mizutani/goerr/v2"
)

// Normalizer turns raw note content into the clean token stream fed to
// the embedding backend: markup stripped, lowercased, punctuation
// dropped, French stop words removed. Token order is preserved.
//
// The pipeline is the bleve French analysis chain; the instance is
// immutable after construction and safe for concurrent use.
type Normalizer struct {
	charFilter analysis.CharFilter
	tokenizer  analysis.Tokenizer
	filters    []analysis.TokenFilter
}

// New builds the analysis pipeline from the bleve registry
func New() (*Normalizer, error) {
	cache := registry.NewCache()

	charFilter, err := cache.CharFilterNamed(htmlchar.Name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load html char filter")
	}

	tokenizer, err := cache.TokenizerNamed(unicode.Name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load unicode tokenizer")
	}

	elisionFilter, err := cache.TokenFilterNamed(fr.ElisionName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load french elision filter")
	}

	lowercaseFilter, err := cache.TokenFilterNamed(lowercase.Name)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load lowercase filter")
	}

	stopFilter, err := cache.TokenFilterNamed(fr.StopName)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load french stop filter")
	}

	return &Normalizer{
		charFilter: charFilter,
		tokenizer:  tokenizer,
		filters:    []analysis.TokenFilter{elisionFilter, lowercaseFilter, stopFilter},
	}, nil
}

// Normalize produces the space-joined filtered token stream for raw
// text. Empty input yields an empty string; the function is idempotent.
func (n *Normalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	tokens := n.tokenizer.Tokenize(n.charFilter.Filter([]byte(raw)))
	for _, filter := range n.filters {
		tokens = filter.Filter(tokens)
	}

	terms := make([]string, 0, len(tokens))
	for _, token := range tokens {
		terms = append(terms, string(token.Term))
	}

	return strings.Join(terms, " ")
}

// StripMarkup removes markup tags and collapses whitespace, keeping the
// visible text otherwise untouched. Used for content previews where
// case and punctuation must survive.
func (n *Normalizer) StripMarkup(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.Join(strings.Fields(string(n.charFilter.Filter([]byte(raw)))), " ")
}
