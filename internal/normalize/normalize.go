// Package normalize turns free text into the term sequence used both for
// indexing and for queries.
//
// The pipeline is fixed: lowercase, URL and punctuation removal, whitespace
// tokenization, stopword removal, minimum-length filtering, stemming. The
// stopword lexicon and the stemmer are swappable.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var urlPattern = regexp.MustCompile(`http\S+|www\S+`)

// Options configures a Normalizer
type Options struct {
	Stopwords      Stopwords
	Stemmer        Stemmer
	MinTokenLength int  // tokens shorter than this are dropped; 0 keeps everything
	KeepDigits     bool // numeric characters survive character filtering
}

// Normalizer is safe for concurrent use; it holds no mutable state.
type Normalizer struct {
	stopwords      Stopwords
	stemmer        Stemmer
	minTokenLength int
	keepDigits     bool
}

// Result is the outcome of normalizing one input
type Result struct {
	Tokens   []string
	Warnings []error
}

// Empty reports whether normalization produced no tokens
func (r Result) Empty() bool {
	return len(r.Tokens) == 0
}

func New(opts Options) *Normalizer {
	n := &Normalizer{
		stopwords:      opts.Stopwords,
		stemmer:        opts.Stemmer,
		minTokenLength: opts.MinTokenLength,
		keepDigits:     opts.KeepDigits,
	}
	if n.stopwords == nil {
		n.stopwords = NewStopwordSet()
	}
	if n.stemmer == nil {
		n.stemmer = NopStemmer{}
	}
	return n
}

// Normalize runs the full pipeline. It never fails: problems inside the
// stemmer are reported as warnings and the unstemmed tokens are kept.
func (n *Normalizer) Normalize(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	kept := n.filter(strings.Fields(n.clean(text)))
	if len(kept) == 0 {
		return Result{}
	}

	stemmed, err := stemAll(n.stemmer, kept)
	if err != nil {
		return Result{Tokens: kept, Warnings: []error{err}}
	}
	// a stem can shrink below the length floor or land on a stopword
	return Result{Tokens: n.filter(stemmed)}
}

func (n *Normalizer) filter(tokens []string) []string {
	kept := tokens[:0]
	for _, token := range tokens {
		if n.stopwords.Contains(token) {
			continue
		}
		if utf8.RuneCountInString(token) < n.minTokenLength {
			continue
		}
		kept = append(kept, token)
	}
	return kept
}

// Tokens is Normalize without the warnings
func (n *Normalizer) Tokens(text string) []string {
	return n.Normalize(text).Tokens
}

// clean lowercases, blanks out URLs and reduces the text to letters,
// optionally digits, and single spaces.
func (n *Normalizer) clean(text string) string {
	text = strings.ToValidUTF8(text, " ")
	text = strings.ToLower(text)
	text = urlPattern.ReplaceAllString(text, " ")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsDigit(r) && n.keepDigits:
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}
