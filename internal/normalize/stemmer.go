package normalize

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kljensen/snowball"
)

// ErrStemmer marks a recovered stemmer failure
var ErrStemmer = errors.New("stemmer failure")

// Stemmer reduces a word to its base form
type Stemmer interface {
	Stem(word string) (string, error)
}

// StemmerWarning records a stemmer failure that was recovered locally.
// The input it belongs to keeps its unstemmed tokens.
type StemmerWarning struct {
	Token string
	Err   error
}

func (w *StemmerWarning) Error() string {
	return fmt.Sprintf("stemming %q skipped: %v", w.Token, w.Err)
}

func (w *StemmerWarning) Unwrap() []error {
	return []error{ErrStemmer, w.Err}
}

// NopStemmer returns words unchanged
type NopStemmer struct{}

func (NopStemmer) Stem(word string) (string, error) {
	return word, nil
}

// SnowballStemmer stems with the Snowball algorithms for one language
// ("english", "spanish", "french", "russian", "swedish", "norwegian", "hungarian").
type SnowballStemmer struct {
	Language string
}

// Stem reapplies the algorithm until the stem is stable, so stemming a
// stem is a no-op. A word that keeps shrinking past maxStemPasses is
// returned as it stands.
func (s SnowballStemmer) Stem(word string) (string, error) {
	for range maxStemPasses {
		stem, err := snowball.Stem(word, s.Language, false)
		if err != nil {
			return "", err
		}
		if stem == word || stem == "" {
			return stem, nil
		}
		word = stem
	}
	return word, nil
}

const maxStemPasses = 5

// NewStemmer resolves a configured language name to a Stemmer
func NewStemmer(language string) (Stemmer, error) {
	switch lang := strings.ToLower(strings.TrimSpace(language)); lang {
	case "", "none":
		return NopStemmer{}, nil
	case "id", "indonesian":
		return IndonesianStemmer{}, nil
	case "en":
		return SnowballStemmer{Language: "english"}, nil
	default:
		stemmer := SnowballStemmer{Language: lang}
		if _, err := stemmer.Stem("test"); err != nil {
			return nil, fmt.Errorf("unsupported stemmer language %q: %w", language, err)
		}
		return stemmer, nil
	}
}

// stemAll stems every token or none of them
func stemAll(stemmer Stemmer, tokens []string) ([]string, error) {
	out := make([]string, len(tokens))
	for i, token := range tokens {
		stemmed, err := safeStem(stemmer, token)
		if err != nil {
			return nil, &StemmerWarning{Token: token, Err: err}
		}
		if stemmed == "" {
			stemmed = token
		}
		out[i] = stemmed
	}
	return out, nil
}

func safeStem(stemmer Stemmer, token string) (stemmed string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return stemmer.Stem(token)
}
