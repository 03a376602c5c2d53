// Package tokenizer splits raw text into sentences and normalised token
// multisets. Input is NFC-normalised (diacritics are preserved, byte
// representation is canonical), lower-cased, split on non-alphanumeric
// boundaries, and filtered against an externally supplied stopword set.
package tokenizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultStopwords contains common English stop words. Callers with their own
// curated list pass it to New; this set is only a development default.
var DefaultStopwords = []string{
	"a", "an", "and", "are", "as", "at", "be", "by", "for", "from",
	"has", "he", "in", "is", "it", "its", "of", "on", "or", "that",
	"the", "to", "was", "were", "will", "with", "this", "but", "they",
	"have", "had", "what", "when", "where", "who", "which", "their",
	"if", "each", "do", "not", "no", "so", "can",
}

// Sentence is one sentence of the input: its raw text and the ordered token
// multiset that survived normalisation and stopword removal.
type Sentence struct {
	Raw    string
	Tokens []string
}

// Tokenizer holds the stopword set and the minimum-token cutoff. Identical
// text against the same Tokenizer always yields identical output.
type Tokenizer struct {
	stopwords map[string]struct{}
	minTokens int
}

// New creates a Tokenizer. Sentences with fewer than minTokens tokens are
// excluded from both indexing and matching; values below 1 default to 3.
func New(stopwords []string, minTokens int) *Tokenizer {
	if minTokens < 1 {
		minTokens = 3
	}
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		set[strings.ToLower(norm.NFC.String(w))] = struct{}{}
	}
	return &Tokenizer{
		stopwords: set,
		minTokens: minTokens,
	}
}

// Split breaks text into an ordered sequence of eligible sentences.
func (t *Tokenizer) Split(text string) []Sentence {
	parts := splitSentences(text)
	sentences := make([]Sentence, 0, len(parts))
	for _, raw := range parts {
		tokens := t.Tokenize(raw)
		if len(tokens) < t.minTokens {
			continue
		}
		sentences = append(sentences, Sentence{
			Raw:    raw,
			Tokens: tokens,
		})
	}
	return sentences
}

// Tokenize normalises a single sentence into its token multiset.
func (t *Tokenizer) Tokenize(text string) []string {
	text = strings.ToLower(norm.NFC.String(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// splitSentences splits on sentence-terminal punctuation, trimming whitespace
// and dropping empty segments. Text without a trailing terminator still
// yields its final sentence.
func splitSentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '.', '!', '?', '…', ';':
			return true
		}
		return false
	})
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sentences = append(sentences, p)
	}
	return sentences
}
