package index

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
)

// stopWords mirrors the original tokenizer's fixed English stopword list.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "has": true, "he": true,
	"in": true, "is": true, "it": true, "its": true, "of": true, "on": true,
	"that": true, "the": true, "to": true, "was": true, "were": true,
	"will": true, "with": true, "this": true, "but": true, "they": true,
	"have": true, "had": true, "what": true, "when": true, "where": true,
	"who": true, "which": true, "why": true, "how": true, "all": true,
	"would": true, "there": true, "their": true, "can": true, "could": true,
	// "not" and other negation words are deliberately absent: belief
	// revision (pkg/correction) depends on detecting them in content.
	"i": true, "you": true, "we": true, "or": true, "if": true, "do": true,
	"does": true, "did": true, "so": true, "than": true, "then": true,
	"them": true, "these": true, "those": true, "about": true, "into": true,
	"over": true, "under": true, "between": true,
}

// Tokenizer splits content into normalized terms: lowercase, split on
// non-alphanumeric boundaries, drop short tokens and stopwords, then apply
// Snowball English stemming (see SPEC_FULL.md Ambiguity (b)).
type Tokenizer struct{}

func NewTokenizer() *Tokenizer { return &Tokenizer{} }

// Tokenize returns the ordered list of stemmed terms in text.
func (t *Tokenizer) Tokenize(text string) []string {
	var terms []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		raw := strings.ToLower(b.String())
		b.Reset()
		if len(raw) < 2 {
			return
		}
		if stopWords[raw] {
			return
		}
		terms = append(terms, english.Stem(raw, false))
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return terms
}

// TermFrequencies returns a term -> occurrence-count map for text.
func (t *Tokenizer) TermFrequencies(text string) map[string]uint32 {
	freqs := make(map[string]uint32)
	for _, term := range t.Tokenize(text) {
		freqs[term]++
	}
	return freqs
}
